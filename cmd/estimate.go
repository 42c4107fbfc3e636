package cmd

import (
	"github.com/huangsam/cfpscan/core"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/spf13/cobra"
)

// estimateCmd runs the batch estimation over the whole corpus.
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate CFP metrics for every repository in the corpus.",
	Long: `Scan every repository under --repos-dir, count data movements per
category and derive cfp_total, eloc_per_cfp and cfp_per_kloc.

Line metrics are read from --eloc-file when it exists. Otherwise the
repositories come from --inventory-file or the sub-directories of --repos-dir
and line metrics are zero. Repositories missing on disk are skipped; a
repository that cannot be scanned is reported and does not stop the batch.

Examples:
  # Estimate the default corpus and write data/final_metrics.csv
  cfpscan estimate

  # Show the top 20 repositories in a table
  cfpscan estimate --output text --limit 20

  # Reuse counts across runs and record the run history
  cfpscan estimate --cache-backend sqlite --analysis-backend sqlite

  # Export for analytics
  cfpscan estimate --output parquet --output-file metrics.parquet`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteEstimate(runContext(), cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run estimation", err)
		}
	},
}
