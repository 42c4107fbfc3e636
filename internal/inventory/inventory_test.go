package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/cfpscan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const elocCSV = `repo,code,comments,blanks,total_eloc,error
alpha_svc,100,20,10,130,
beta_cli,50,5,5,,
gamma_lib,,,,,cloc timed out
delta_app,12.0,3.0,1.0,16.0,
`

func TestParseELOC(t *testing.T) {
	inputs, err := parseELOC(strings.NewReader(elocCSV), "repos")
	require.NoError(t, err)
	require.Len(t, inputs, 4)

	assert.Equal(t, schema.RepositoryInput{
		Repo:        "alpha_svc",
		Path:        filepath.Join("repos", "alpha_svc"),
		LineMetrics: schema.LineMetrics{Code: 100, Comments: 20, Blanks: 10, TotalELOC: 130},
		HasMetrics:  true,
	}, inputs[0])

	// Missing total_eloc falls back to the sum of its parts
	assert.Equal(t, 60, inputs[1].LineMetrics.TotalELOC)

	assert.Equal(t, schema.LineMetrics{}, inputs[2].LineMetrics)
	assert.Equal(t, "cloc timed out", inputs[2].UpstreamErr)

	assert.Equal(t, schema.LineMetrics{Code: 12, Comments: 3, Blanks: 1, TotalELOC: 16}, inputs[3].LineMetrics)
}

func TestParseELOCErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"missing repo column", "name,code\nx,1\n"},
		{"missing code column", "repo,comments\nx,1\n"},
		{"bad number", "repo,code\nx,lots\n"},
		{"negative number", "repo,code\nx,-4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseELOC(strings.NewReader(tt.csv), "repos")
			assert.Error(t, err)
		})
	}
}

func TestParseELOCSkipsBlankRepo(t *testing.T) {
	inputs, err := parseELOC(strings.NewReader("repo,code\n,5\nx,1\n"), "r")
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "x", inputs[0].Repo)
}

func TestLoadPrefersELOCFile(t *testing.T) {
	dir := t.TempDir()
	elocPath := filepath.Join(dir, "eloc.csv")
	require.NoError(t, os.WriteFile(elocPath, []byte(elocCSV), 0o644))
	invPath := filepath.Join(dir, "repos.json")
	require.NoError(t, os.WriteFile(invPath, []byte(`[
		{"full_name": "alpha/svc", "clone_url": "https://example.com/alpha/svc.git", "language": "Go", "stargazers_count": 42},
		{"full_name": ""}
	]`), 0o644))

	inputs, source, err := Load(Options{ReposDir: "repos", ELOCFile: elocPath, InventoryFile: invPath})
	require.NoError(t, err)
	assert.Equal(t, ELOCSource, source)
	require.Len(t, inputs, 4)
	assert.Equal(t, "https://example.com/alpha/svc.git", inputs[0].CloneURL)
	assert.Equal(t, 42, inputs[0].Stars)
	assert.Empty(t, inputs[1].CloneURL)
}

func TestLoadFromRepoList(t *testing.T) {
	dir := t.TempDir()
	invPath := filepath.Join(dir, "repos.json")
	require.NoError(t, os.WriteFile(invPath, []byte(`[{"full_name": "org/one"}, {"full_name": "org/two"}]`), 0o644))

	inputs, source, err := Load(Options{ReposDir: "repos", ELOCFile: filepath.Join(dir, "missing.csv"), InventoryFile: invPath})
	require.NoError(t, err)
	assert.Equal(t, RepoListSource, source)
	require.Len(t, inputs, 2)
	assert.Equal(t, "org_one", inputs[0].Repo)
	assert.Equal(t, filepath.Join("repos", "org_two"), inputs[1].Path)
	assert.False(t, inputs[0].HasMetrics)
}

func TestLoadFromDirectory(t *testing.T) {
	reposDir := t.TempDir()
	for _, name := range []string{"zeta", "alpha", ".hidden"} {
		require.NoError(t, os.Mkdir(filepath.Join(reposDir, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(reposDir, "notes.txt"), []byte("x"), 0o644))

	inputs, source, err := Load(Options{ReposDir: reposDir})
	require.NoError(t, err)
	assert.Equal(t, DirectorySource, source)
	require.Len(t, inputs, 2)
	assert.Equal(t, "alpha", inputs[0].Repo)
	assert.Equal(t, "zeta", inputs[1].Repo)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(Options{ReposDir: filepath.Join(dir, "nope")})
	assert.Error(t, err)

	badJSON := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badJSON, []byte("{not json"), 0o644))
	_, _, err = Load(Options{ReposDir: dir, InventoryFile: badJSON})
	assert.Error(t, err)
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "gin-gonic_gin", RepoEntry{FullName: "gin-gonic/gin"}.LocalName())
}
