package cmd

import (
	"github.com/huangsam/cfpscan/core"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/spf13/cobra"
)

// scanCmd estimates a single repository.
var scanCmd = &cobra.Command{
	Use:   "scan <repo-path>",
	Short: "Estimate CFP metrics for one repository directory.",
	Long: `Scan one repository directory and print its movement counts and
derived metrics. Line metrics are optional; without --code the normalized
metrics are reported as 0.

Examples:
  # Count movements only
  cfpscan scan ./repos/acme_api --output text

  # Include line metrics from a line counter
  cfpscan scan ./repos/acme_api --code 12000 --comments 900 --blanks 1500 --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteScan(runContext(), cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot scan repository", err)
		}
	},
}
