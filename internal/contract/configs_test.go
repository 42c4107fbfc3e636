package contract

import (
	"path/filepath"
	"testing"

	"github.com/huangsam/cfpscan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseInput returns a raw input that passes validation.
func baseInput() *ConfigRawInput {
	return &ConfigRawInput{
		Workers:      4,
		Precision:    2,
		Output:       "csv",
		Color:        "yes",
		CacheBackend: "none",
	}
}

func ptr(v float64) *float64 { return &v }

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
	}{
		{name: "valid minimal config", mutate: func(*ConfigRawInput) {}},
		{name: "zero workers", mutate: func(in *ConfigRawInput) { in.Workers = 0 }, expectError: true},
		{name: "negative limit", mutate: func(in *ConfigRawInput) { in.Limit = -1 }, expectError: true},
		{name: "precision too high", mutate: func(in *ConfigRawInput) { in.Precision = 7 }, expectError: true},
		{name: "precision zero", mutate: func(in *ConfigRawInput) { in.Precision = 0 }},
		{name: "invalid output", mutate: func(in *ConfigRawInput) { in.Output = "xml" }, expectError: true},
		{name: "parquet without file", mutate: func(in *ConfigRawInput) { in.Output = "parquet" }, expectError: true},
		{name: "parquet to stdout", mutate: func(in *ConfigRawInput) {
			in.Output = "parquet"
			in.OutputFile = "-"
		}, expectError: true},
		{name: "parquet with file", mutate: func(in *ConfigRawInput) {
			in.Output = "parquet"
			in.OutputFile = "out.parquet"
		}},
		{name: "invalid color", mutate: func(in *ConfigRawInput) { in.Color = "sometimes" }, expectError: true},
		{name: "invalid cache backend", mutate: func(in *ConfigRawInput) { in.CacheBackend = "redis" }, expectError: true},
		{name: "mysql without connection", mutate: func(in *ConfigRawInput) { in.CacheBackend = "mysql" }, expectError: true},
		{name: "invalid analysis backend", mutate: func(in *ConfigRawInput) { in.AnalysisBackend = "mongo" }, expectError: true},
		{name: "sqlite cache and analysis share a file", mutate: func(in *ConfigRawInput) {
			in.CacheBackend = "sqlite"
			in.AnalysisBackend = "sqlite"
			in.CacheDBConnect = "same.db"
			in.AnalysisDBConnect = "same.db"
		}, expectError: true},
		{name: "sqlite cache and analysis default files", mutate: func(in *ConfigRawInput) {
			in.CacheBackend = "sqlite"
			in.AnalysisBackend = "sqlite"
		}},
		{name: "negative line metrics", mutate: func(in *ConfigRawInput) { in.Code = -5 }, expectError: true},
		{name: "bad taxonomy rule", mutate: func(in *ConfigRawInput) {
			in.Taxonomy = map[string][]TaxonomyEntryRaw{"entry": {{Rules: []string{"("}}}}
		}, expectError: true},
		{name: "weight for unknown category", mutate: func(in *ConfigRawInput) {
			in.Weights = map[string]float64{"bogus": 2}
		}, expectError: true},
		{name: "missing repository path", mutate: func(in *ConfigRawInput) {
			in.RepoPathStr = filepath.Join("does", "not", "exist")
		}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, baseInput()))

	assert.Equal(t, DefaultReposDir, cfg.ReposDir)
	assert.Equal(t, schema.CSVOut, cfg.Output)
	assert.Equal(t, schema.NoneBackend, cfg.CacheBackend)
	assert.Equal(t, schema.DatabaseBackend(""), cfg.AnalysisBackend)
	assert.Equal(t, []string{".go"}, cfg.Policy.Extensions)
	assert.Equal(t, []string{"vendor", "third_party", "generated"}, cfg.Policy.ExcludeDirs)
	assert.False(t, cfg.Policy.IncludeTests)
	assert.Equal(t, schema.BuiltinCategories, cfg.Taxonomy.Categories())
	assert.True(t, cfg.UseColors)
}

func TestProcessAndValidateWorkersCapped(t *testing.T) {
	input := baseInput()
	input.Workers = 500
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, MaxWorkers, cfg.Workers)
	assert.LessOrEqual(t, DefaultWorkers, MaxWorkers)
}

func TestProcessAndValidatePolicy(t *testing.T) {
	input := baseInput()
	input.Extensions = "go, rs"
	input.ExcludeDirs = "node_modules,,testdata"
	input.TestSuffix = "_spec.go"
	input.IncludeTests = true
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, []string{".go", ".rs"}, cfg.Policy.Extensions)
	assert.Equal(t, []string{"node_modules", "testdata"}, cfg.Policy.ExcludeDirs)
	assert.Equal(t, "_spec.go", cfg.Policy.TestSuffix)
	assert.True(t, cfg.Policy.IncludeTests)
}

func TestProcessAndValidateTaxonomy(t *testing.T) {
	input := baseInput()
	input.Taxonomy = map[string][]TaxonomyEntryRaw{
		"entry": {{Rules: []string{`\bfunc\s+[A-Z]\w*\(`}}},
		"exit": {
			{Rules: []string{`\bw\.Write`}, Weight: ptr(2)},
			{Rules: []string{`\bSend\(`}, CaseSensitive: true},
		},
		"queue": {{Rules: []string{`\bkafka\.`}, CaseSensitive: true}},
		"audit": {},
	}
	input.Weights = map[string]float64{"Entry": 0.5}
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, []schema.MovementCategory{"entry", "exit", "audit", "queue"}, cfg.Taxonomy.Categories())
	assert.Equal(t, 0.5, cfg.Taxonomy.WeightOf("entry"))
	assert.Equal(t, 2.0, cfg.Taxonomy.WeightOf("exit"))
	assert.Equal(t, 1.0, cfg.Taxonomy.WeightOf("queue"))
	assert.Len(t, cfg.Taxonomy.RulesFor("exit"), 2)
	assert.Empty(t, cfg.Taxonomy.RulesFor("audit"))
	assert.Equal(t, 2, cfg.Taxonomy.Count("w.Write(a); SEND(b); Send(c)")[schema.ExitMovement])
}

func TestProcessAndValidateLineMetrics(t *testing.T) {
	input := baseInput()
	input.RepoPathStr = t.TempDir()
	input.Code = 10
	input.Comments = 3
	input.Blanks = 2
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, schema.LineMetrics{Code: 10, Comments: 3, Blanks: 2, TotalELOC: 15}, cfg.LineMetrics)
	assert.True(t, filepath.IsAbs(cfg.RepoPath))
}

func TestResolveOutputFile(t *testing.T) {
	tests := []struct {
		output   schema.OutputMode
		file     string
		expected string
	}{
		{schema.CSVOut, "", DefaultOutputFile},
		{schema.CSVOut, "-", ""},
		{schema.JSONOut, "", ""},
		{schema.TextOut, "report.txt", "report.txt"},
	}
	for _, tt := range tests {
		cfg := &Config{Output: tt.output, OutputFile: tt.file}
		assert.Equal(t, tt.expected, cfg.ResolveOutputFile(), "%s/%q", tt.output, tt.file)
	}
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.NoneBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "u:p@tcp(localhost:3306)/db"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "u:p@localhost"))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost dbname=x"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost"))
}
