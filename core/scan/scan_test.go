package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/cfpscan/core/taxonomy"
	"github.com/huangsam/cfpscan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerSource = `package api

func Handler(w http.ResponseWriter, r *Request) { w.Write(data) }
`

// writeTree creates files under a fresh temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// exampleTaxonomy matches exported funcs as entries and w.Write as exits.
func exampleTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.New([]taxonomy.CategorySpec{
		{Category: schema.EntryMovement, Rules: []string{`\bfunc\s+[A-Z]\w*\(`}},
		{Category: schema.ExitMovement, Rules: []string{`w\.Write\(`}},
		{Category: schema.ReadMovement},
		{Category: schema.WriteMovement},
	})
	require.NoError(t, err)
	return tax
}

func TestScanSingleHandler(t *testing.T) {
	root := writeTree(t, map[string]string{"api/handler.go": handlerSource})
	s := NewScanner(exampleTaxonomy(t), DefaultPolicy())

	res, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, schema.MovementCounts{
		schema.EntryMovement: 1,
		schema.ExitMovement:  1,
		schema.ReadMovement:  0,
		schema.WriteMovement: 0,
	}, res.Counts)
	assert.Equal(t, 1, res.FilesScanned)
	assert.Empty(t, res.Error)
}

func TestScanExclusions(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":                       handlerSource,
		"vendor/lib/lib.go":             handlerSource,
		"pkg/third_party/x/x.go":        handlerSource,
		"internal/generated/gen.go":     handlerSource,
		"vendored_copy/copy.go":         handlerSource, // substring match skips this too
		"api/handler_test.go":           handlerSource,
		"docs/readme.md":                handlerSource,
		"web/script.js":                 handlerSource,
		"cmd/tool/main.go":              handlerSource,
		"pkg/generatedish/not_skip.txt": handlerSource,
	})
	s := NewScanner(exampleTaxonomy(t), DefaultPolicy())

	res, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesScanned)
	assert.Equal(t, 2, res.Counts[schema.EntryMovement])
	assert.Equal(t, 2, res.Counts[schema.ExitMovement])
}

func TestScanIncludeTests(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go":      handlerSource,
		"a_test.go": handlerSource,
	})
	policy := DefaultPolicy()
	policy.IncludeTests = true
	s := NewScanner(exampleTaxonomy(t), policy)

	res, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts[schema.EntryMovement])
}

func TestScanRootInsideExcludedPath(t *testing.T) {
	// Only the path below the root is tested against exclusion tokens.
	parent := t.TempDir()
	root := filepath.Join(parent, "generated-repos", "svc")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(handlerSource), 0o644))

	res, err := NewScanner(exampleTaxonomy(t), DefaultPolicy()).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesScanned)
}

func TestScanInvalidUTF8(t *testing.T) {
	root := writeTree(t, map[string]string{
		"bad.go": "func \xff\xfeHandler(w) {}\nfunc Other(\xc3) { w.Write(x) }",
	})
	res, err := NewScanner(exampleTaxonomy(t), DefaultPolicy()).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts[schema.EntryMovement])
	assert.Equal(t, 1, res.Counts[schema.ExitMovement])
}

func TestScanUnreadableFileIsSkipped(t *testing.T) {
	root := writeTree(t, map[string]string{
		"good.go": handlerSource,
		"bad.go":  handlerSource,
	})
	s := NewScanner(exampleTaxonomy(t), DefaultPolicy())
	s.readFile = func(path string) ([]byte, error) {
		if strings.HasSuffix(path, "bad.go") {
			return nil, os.ErrPermission
		}
		return os.ReadFile(path)
	}

	res, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesScanned)
	assert.Equal(t, 1, res.FilesUnreadable)
	assert.Equal(t, 1, res.Counts[schema.EntryMovement])
}

func TestScanMissingRoot(t *testing.T) {
	s := NewScanner(exampleTaxonomy(t), DefaultPolicy())
	res, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRepositoryUnreadable))
	assert.NotEmpty(t, res.Error)
	assert.Len(t, res.Counts, 4)
	for cat, n := range res.Counts {
		assert.Zero(t, n, "category %s", cat)
	}
}

func TestScanSymlinkedRoot(t *testing.T) {
	target := writeTree(t, map[string]string{"api/handler.go": handlerSource})
	link := filepath.Join(t.TempDir(), "linked")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	s := NewScanner(exampleTaxonomy(t), DefaultPolicy())

	direct, err := s.Scan(context.Background(), target)
	require.NoError(t, err)
	viaLink, err := s.Scan(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, 1, viaLink.FilesScanned)
	assert.Equal(t, direct.Counts, viaLink.Counts)

	fpDirect, err := s.Fingerprint(context.Background(), target)
	require.NoError(t, err)
	fpLink, err := s.Fingerprint(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, fpDirect, fpLink)
}

func TestScanDanglingSymlinkRoot(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	if err := os.Symlink(filepath.Join(dir, "gone"), link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	_, err := NewScanner(exampleTaxonomy(t), DefaultPolicy()).Scan(context.Background(), link)
	assert.ErrorIs(t, err, ErrRepositoryUnreadable)
}

func TestScanCanceled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": handlerSource})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(exampleTaxonomy(t), DefaultPolicy()).Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanIdempotent(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go":     handlerSource,
		"b/b.go":   "go run(x)\nch := make(<-chan int)\njson.Marshal(v)\nos.Open(p)",
		"c/d/e.go": "router.GET(\"/\", h)\nfmt.Fprintf(w, \"x\")",
	})
	s := NewScanner(taxonomy.Default(), DefaultPolicy())

	first, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	second, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFingerprint(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": handlerSource, "vendor/v.go": "x"})
	s := NewScanner(exampleTaxonomy(t), DefaultPolicy())
	ctx := context.Background()

	fp1, err := s.Fingerprint(ctx, root)
	require.NoError(t, err)
	fp2, err := s.Fingerprint(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)

	// Excluded files do not affect the fingerprint.
	require.NoError(t, os.WriteFile(filepath.Join(root, "vendor", "v.go"), []byte("changed content"), 0o644))
	fp3, err := s.Fingerprint(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp3)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte(handlerSource), 0o644))
	fp4, err := s.Fingerprint(ctx, root)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp4)

	_, err = s.Fingerprint(ctx, filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, ErrRepositoryUnreadable)
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.False(t, p.ExcludesDir("."))
	assert.True(t, p.ExcludesDir("a/vendor/b"))
	assert.True(t, p.ExcludesDir("proto_generated"))
	assert.False(t, p.ExcludesDir("Vendor"), "token match is case-sensitive")

	assert.True(t, p.Eligible("main.go"))
	assert.False(t, p.Eligible("main_test.go"))
	assert.False(t, p.Eligible("main.go.orig"))
	assert.False(t, p.Eligible("Makefile"))
	assert.NotEqual(t, p.String(), Policy{}.String())
}

func FuzzExcludesDir(f *testing.F) {
	f.Add("vendor/github.com/x", "vendor")
	f.Add("internal/generated", "generated")
	f.Add(".", "vendor")
	f.Add("src/app", "")
	f.Fuzz(func(t *testing.T, rel, token string) {
		p := Policy{ExcludeDirs: []string{token}}
		got := p.ExcludesDir(rel)
		if rel == "." || rel == "" || token == "" {
			assert.False(t, got)
			return
		}
		assert.Equal(t, strings.Contains(rel, token), got)
		// A child of an excluded directory is excluded as well
		if got {
			assert.True(t, p.ExcludesDir(rel+"/child"))
		}
	})
}
