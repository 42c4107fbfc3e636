// Package contract provides interfaces and shared utilities for the cfpscan internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/cfpscan/schema"
)

// RepositoryScanner counts movements in one repository tree.
// This allows the aggregator to be tested without touching real trees.
type RepositoryScanner interface {
	// Scan walks root and returns its per-category counts.
	Scan(ctx context.Context, root string) (schema.ScanResult, error)

	// Fingerprint summarizes the scanned files under root for cache keys.
	Fingerprint(ctx context.Context, root string) (string, error)
}

// GitClient defines the git operations the fetch stage needs.
// This allows fetching to be tested without needing a real git executable.
type GitClient interface {
	// Run executes git in repoPath and returns its stdout.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// Clone makes a shallow clone of url at dest.
	Clone(ctx context.Context, url, dest string) error
}

// CacheManager defines the interface for managing cache stores.
// This allows the cache layer to be mocked for testing.
type CacheManager interface {
	GetScanStore() CacheStore
	GetAnalysisStore() AnalysisStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// AnalysisStore defines the interface for tracking estimation runs and storing records.
type AnalysisStore interface {
	// BeginAnalysis creates a new estimation run and returns its unique ID
	BeginAnalysis(startTime time.Time, configParams map[string]any) (int64, error)

	// EndAnalysis updates the run with completion data
	EndAnalysis(analysisID int64, endTime time.Time, totalRepositories int, totalFailures int) error

	// RecordRepository stores the finalized record of one repository
	RecordRepository(analysisID int64, record schema.RepositoryRecord) error

	// GetStatus returns status information about the analysis store
	GetStatus() (schema.AnalysisStatus, error)

	// GetAllAnalysisRuns retrieves all estimation runs
	GetAllAnalysisRuns() ([]schema.AnalysisRunRecord, error)

	// GetAllRepositoryMetrics retrieves all stored repository rows
	GetAllRepositoryMetrics() ([]schema.RepositoryMetricsRecord, error)

	// Close closes the underlying connection
	Close() error
}
