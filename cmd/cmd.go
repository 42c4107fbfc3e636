// Package cmd defines the command-line interface for cfpscan.
package cmd

import (
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(taxonomyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(analysisCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the analysis subcommands to the parent analysis command
	analysisCmd.AddCommand(analysisClearCmd)
	analysisCmd.AddCommand(analysisStatusCmd)
	analysisCmd.AddCommand(analysisExportCmd)
	analysisCmd.AddCommand(analysisMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("repos-dir", contract.DefaultReposDir, "Directory holding one sub-directory per repository")
	rootCmd.PersistentFlags().String("eloc-file", contract.DefaultELOCFile, "Line metrics CSV (repo, code, comments, blanks, total_eloc, error)")
	rootCmd.PersistentFlags().String("inventory-file", "", "Optional repository list JSON with full_name and clone_url")
	rootCmd.PersistentFlags().String("extensions", "", "Comma-separated source file extensions to scan (default .go)")
	rootCmd.PersistentFlags().String("exclude-dirs", "", "Comma-separated directory tokens to skip (default vendor,third_party,generated)")
	rootCmd.PersistentFlags().String("test-suffix", "", "File name suffix that marks test files (default _test.go)")
	rootCmd.PersistentFlags().Bool("include-tests", false, "Scan test files too")
	rootCmd.PersistentFlags().IntP("limit", "l", 0, "Number of rows in the text table (0 = all)")
	rootCmd.PersistentFlags().String("output", string(schema.CSVOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Path to write output to ('-' for stdout)")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for derived metrics")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.NoneBackend), "Scan cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("analysis-backend", "", "Run tracking backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("analysis-db-connect", "", "Database connection string for run tracking (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Do not print the run header")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of scanCmd to Viper
	scanCmd.Flags().Int("code", 0, "Lines of code for the repository")
	scanCmd.Flags().Int("comments", 0, "Comment lines for the repository")
	scanCmd.Flags().Int("blanks", 0, "Blank lines for the repository")
	scanCmd.Flags().Int("total-eloc", 0, "Total lines (defaults to code + comments + blanks)")
	if err := viper.BindPFlags(scanCmd.Flags()); err != nil {
		contract.LogFatal("Error binding scan flags", err)
	}

	taxonomyCmd.Flags().Bool("yaml", false, "Print the taxonomy as a config file snippet")
	if err := viper.BindPFlags(taxonomyCmd.Flags()); err != nil {
		contract.LogFatal("Error binding taxonomy flags", err)
	}

	// Bind all flags of analysisMigrateCmd to Viper
	analysisMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(analysisMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding analysis migrate flags", err)
	}
}
