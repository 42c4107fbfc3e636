package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/inventory"
)

// logEstimateHeader prints a concise, 2-line header for an estimation run.
// It goes to stderr so piped CSV or JSON output stays clean.
func logEstimateHeader(cfg *contract.Config, source inventory.Source, n int) {
	// Line 1: where the repositories come from
	_, _ = fmt.Fprintf(os.Stderr, "🔎 Repos: %s (%d listed via %s)\n", cfg.ReposDir, n, source)

	// Line 2: the active taxonomy and pool size
	_, _ = fmt.Fprintf(os.Stderr, "🧮 Categories: %d, Workers: %d, Tests: %s\n",
		len(cfg.Taxonomy.Categories()), cfg.Workers, testPolicyLabel(cfg))
}

// logFetchHeader prints the one-line header of a fetch run.
func logFetchHeader(cfg *contract.Config, n int) {
	_, _ = fmt.Fprintf(os.Stderr, "📥 Fetching %d repositories from %s into %s (workers: %d)\n",
		n, cfg.InventoryFile, cfg.ReposDir, cfg.Workers)
}

// testPolicyLabel describes whether test files are scanned.
func testPolicyLabel(cfg *contract.Config) string {
	if cfg.Policy.IncludeTests {
		return "included"
	}
	return "excluded (" + cfg.Policy.TestSuffix + ")"
}

// repoName derives a display identifier from a repository path.
func repoName(path string) string {
	name := filepath.Base(filepath.Clean(path))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "current"
	}
	return name
}
