package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/huangsam/cfpscan/core/derive"
	"github.com/huangsam/cfpscan/core/scan"
	"github.com/huangsam/cfpscan/core/taxonomy"
	"github.com/huangsam/cfpscan/schema"
)

// Default values for configuration.
const (
	DefaultReposDir   = "repos"
	DefaultELOCFile   = "data/eloc_metrics.csv"
	DefaultOutputFile = "data/final_metrics.csv"
	DefaultPrecision  = derive.DefaultPrecision
	MaxPrecision      = 6
	MaxWorkers        = 32
	StdoutMarker      = "-"
)

// DefaultWorkers is twice the available CPUs, capped at MaxWorkers.
var DefaultWorkers = min(MaxWorkers, runtime.NumCPU()*2)

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// TaxonomyEntryRaw is one rule group of a taxonomy category defined in the
// config file. A category maps to one entry or to a list of them.
type TaxonomyEntryRaw struct {
	Rules         []string `mapstructure:"rules"`
	Weight        *float64 `mapstructure:"weight"`
	CaseSensitive bool     `mapstructure:"case_sensitive"`
}

// Config holds the runtime configuration for an estimation.
// This struct is the "final, validated" config.
type Config struct {
	ReposDir      string
	ELOCFile      string
	InventoryFile string
	RepoPath      string // single repository for the scan command
	Workers       int
	Precision     int
	Output        schema.OutputMode
	OutputFile    string
	ResultLimit   int // 0 = all rows
	Width         int // Terminal width override (0 = auto-detect)
	UseColors     bool

	// LineMetrics are supplied by flags for the scan command.
	LineMetrics schema.LineMetrics

	Policy   scan.Policy
	Taxonomy *taxonomy.Taxonomy

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	AnalysisBackend   schema.DatabaseBackend
	AnalysisDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RepoPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	ReposDir          string `mapstructure:"repos-dir"`
	ELOCFile          string `mapstructure:"eloc-file"`
	InventoryFile     string `mapstructure:"inventory-file"`
	Workers           int    `mapstructure:"workers"`
	Extensions        string `mapstructure:"extensions"`
	ExcludeDirs       string `mapstructure:"exclude-dirs"`
	TestSuffix        string `mapstructure:"test-suffix"`
	IncludeTests      bool   `mapstructure:"include-tests"`
	Precision         int    `mapstructure:"precision"`
	Output            string `mapstructure:"output"`
	OutputFile        string `mapstructure:"output-file"`
	Limit             int    `mapstructure:"limit"`
	Width             int    `mapstructure:"width"`
	Color             string `mapstructure:"color"`
	CacheBackend      string `mapstructure:"cache-backend"`
	CacheDBConnect    string `mapstructure:"cache-db-connect"`
	AnalysisBackend   string `mapstructure:"analysis-backend"`
	AnalysisDBConnect string `mapstructure:"analysis-db-connect"`

	// --- Fields from scanCmd.Flags() ---
	Code      int `mapstructure:"code"`
	Comments  int `mapstructure:"comments"`
	Blanks    int `mapstructure:"blanks"`
	TotalELOC int `mapstructure:"total-eloc"`

	// --- Taxonomy from config file ---
	Taxonomy map[string][]TaxonomyEntryRaw `mapstructure:"taxonomy"`
	Weights  map[string]float64          `mapstructure:"weights"`
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processPolicy(cfg, input); err != nil {
		return err
	}
	if err := processTaxonomy(cfg, input); err != nil {
		return err
	}
	if err := processLineMetrics(cfg, input); err != nil {
		return err
	}
	return resolveRepoPath(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and analysis backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return fmt.Errorf("cache-db-connect: %w", err)
	}

	// --- Analysis Backend Validation ---
	cfg.AnalysisBackend = schema.DatabaseBackend(strings.ToLower(input.AnalysisBackend))
	if cfg.AnalysisBackend == "" {
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.AnalysisBackend]; !ok {
		return fmt.Errorf("invalid analysis backend '%s'. must be sqlite, mysql, postgresql, none", input.AnalysisBackend)
	}
	cfg.AnalysisDBConnect = input.AnalysisDBConnect
	if err := ValidateDatabaseConnectionString(cfg.AnalysisBackend, cfg.AnalysisDBConnect); err != nil {
		return fmt.Errorf("analysis-db-connect: %w", err)
	}

	// Cache and analysis must not share a SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.AnalysisBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		analysisDBPath := cfg.AnalysisDBConnect
		if analysisDBPath == "" {
			analysisDBPath = GetAnalysisDBFilePath()
		}
		if cacheDBPath == analysisDBPath {
			return fmt.Errorf("cache and analysis storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates the scalar fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.ReposDir = input.ReposDir
	if cfg.ReposDir == "" {
		cfg.ReposDir = DefaultReposDir
	}
	cfg.ELOCFile = input.ELOCFile
	cfg.InventoryFile = input.InventoryFile
	cfg.Width = input.Width

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Limit Validation ---
	if input.Limit < 0 {
		return fmt.Errorf("limit cannot be negative (received %d)", input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 2. Workers Validation ---
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = min(input.Workers, MaxWorkers)

	// --- 3. Precision and Output Validation ---
	if input.Precision < 0 || input.Precision > MaxPrecision {
		return fmt.Errorf("precision must be between 0 and %d (received %d)", MaxPrecision, input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.CSVOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}

	cfg.OutputFile = strings.TrimSpace(input.OutputFile)
	if cfg.Output == schema.ParquetOut && (cfg.OutputFile == "" || cfg.OutputFile == StdoutMarker) {
		return fmt.Errorf("parquet output requires --output-file")
	}
	return nil
}

// processPolicy builds the scanner file selection policy.
func processPolicy(cfg *Config, input *ConfigRawInput) error {
	policy := scan.DefaultPolicy()
	if input.Extensions != "" {
		policy.Extensions = nil
		for _, ext := range splitList(input.Extensions) {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			policy.Extensions = append(policy.Extensions, ext)
		}
		if len(policy.Extensions) == 0 {
			return fmt.Errorf("extensions must name at least one file extension")
		}
	}
	if input.ExcludeDirs != "" {
		policy.ExcludeDirs = splitList(input.ExcludeDirs)
	}
	if input.TestSuffix != "" {
		policy.TestSuffix = input.TestSuffix
	}
	policy.IncludeTests = input.IncludeTests
	cfg.Policy = policy
	return nil
}

// processTaxonomy compiles the configured taxonomy, falling back to the
// built-in table, and applies weight overrides on top.
func processTaxonomy(cfg *Config, input *ConfigRawInput) error {
	tax := taxonomy.Default()
	if len(input.Taxonomy) > 0 {
		specs := make([]taxonomy.CategorySpec, 0, len(input.Taxonomy))
		for name, entries := range input.Taxonomy {
			if len(entries) == 0 {
				specs = append(specs, taxonomy.CategorySpec{Category: schema.MovementCategory(name)})
			}
			for _, entry := range entries {
				specs = append(specs, taxonomy.CategorySpec{
					Category:      schema.MovementCategory(name),
					Rules:         entry.Rules,
					Weight:        entry.Weight,
					CaseSensitive: entry.CaseSensitive,
				})
			}
		}
		custom, err := taxonomy.New(specs)
		if err != nil {
			return fmt.Errorf("invalid taxonomy: %w", err)
		}
		tax = custom
	}
	if len(input.Weights) > 0 {
		overrides := make(map[schema.MovementCategory]float64, len(input.Weights))
		for name, w := range input.Weights {
			overrides[schema.MovementCategory(strings.ToLower(name))] = w
		}
		weighted, err := tax.WithWeights(overrides)
		if err != nil {
			return fmt.Errorf("invalid weights: %w", err)
		}
		tax = weighted
	}
	cfg.Taxonomy = tax
	return nil
}

// processLineMetrics validates line metrics given by flags.
func processLineMetrics(cfg *Config, input *ConfigRawInput) error {
	lines, err := BuildLineMetrics(input.Code, input.Comments, input.Blanks, input.TotalELOC)
	if err != nil {
		return err
	}
	cfg.LineMetrics = lines
	return nil
}

// BuildLineMetrics validates line counts supplied by a caller. A zero total
// defaults to code + comments + blanks.
func BuildLineMetrics(code, comments, blanks, totalELOC int) (schema.LineMetrics, error) {
	if code < 0 || comments < 0 || blanks < 0 || totalELOC < 0 {
		return schema.LineMetrics{}, fmt.Errorf("line metrics cannot be negative")
	}
	lines := schema.LineMetrics{Code: code, Comments: comments, Blanks: blanks, TotalELOC: totalELOC}
	if lines.TotalELOC == 0 {
		lines.TotalELOC = code + comments + blanks
	}
	return lines, nil
}

// resolveRepoPath makes the positional repository path absolute.
func resolveRepoPath(cfg *Config, input *ConfigRawInput) error {
	if input.RepoPathStr == "" {
		return nil
	}
	abs, err := filepath.Abs(input.RepoPathStr)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("repository path %s: %w", input.RepoPathStr, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository path %s is not a directory", input.RepoPathStr)
	}
	cfg.RepoPath = filepath.Clean(abs)
	return nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

// Clone returns a copy of the config that can be changed per request. The
// taxonomy is immutable and shared.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Policy.Extensions = slices.Clone(c.Policy.Extensions)
	clone.Policy.ExcludeDirs = slices.Clone(c.Policy.ExcludeDirs)
	return &clone
}

// ResolveOutputFile returns the file the estimate command writes to. An
// empty value defaults to DefaultOutputFile for CSV and to stdout otherwise;
// StdoutMarker always means stdout.
func (c *Config) ResolveOutputFile() string {
	switch c.OutputFile {
	case StdoutMarker:
		return ""
	case "":
		if c.Output == schema.CSVOut {
			return DefaultOutputFile
		}
		return ""
	default:
		return c.OutputFile
	}
}

// splitList splits a comma-separated value and drops empty items.
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
