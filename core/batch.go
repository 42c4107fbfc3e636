package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/huangsam/cfpscan/core/derive"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/schema"
	"golang.org/x/sync/errgroup"
)

// ErrNoRepositories is returned when no input repository exists on disk.
var ErrNoRepositories = errors.New("no repositories eligible for scanning")

// Estimator runs scan and derive tasks over a set of repositories.
type Estimator struct {
	scanner   contract.RepositoryScanner
	table     Taxonomy
	workers   int
	precision int
	mgr       contract.CacheManager
}

// Taxonomy is the part of the movement table the estimator needs.
type Taxonomy interface {
	derive.WeightTable
	Fingerprint() string
}

// NewEstimator builds an Estimator. mgr may be nil to disable caching.
func NewEstimator(cfg *contract.Config, scanner contract.RepositoryScanner, mgr contract.CacheManager) *Estimator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = contract.DefaultWorkers
	}
	return &Estimator{
		scanner:   scanner,
		table:     cfg.Taxonomy,
		workers:   min(workers, contract.MaxWorkers),
		precision: cfg.Precision,
		mgr:       mgr,
	}
}

// taskOutcome is the write-once slot of one task.
type taskOutcome struct {
	record   schema.RepositoryRecord
	failure  *schema.Failure
	canceled bool
	cacheHit bool
}

// Run processes every input with a bounded pool and returns the batch.
// Inputs whose path does not exist are skipped. A failing task never stops
// its siblings; a canceled task contributes no record. Only the absence of
// any eligible repository is returned as an error.
func (e *Estimator) Run(ctx context.Context, inputs []schema.RepositoryInput) (*schema.BatchResult, error) {
	start := time.Now()
	result := &schema.BatchResult{
		Categories: e.table.Categories(),
		Records:    []schema.RepositoryRecord{},
		Skipped:    []string{},
		Failures:   []schema.Failure{},
		Workers:    e.workers,
	}

	eligible := make([]schema.RepositoryInput, 0, len(inputs))
	for _, in := range inputs {
		if isMissing(in.Path) {
			result.Skipped = append(result.Skipped, in.Repo)
			continue
		}
		eligible = append(eligible, in)
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: %d listed, %d missing on disk", ErrNoRepositories, len(inputs), len(result.Skipped))
	}

	outcomes := make([]taskOutcome, len(eligible))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, in := range eligible {
		if ctx.Err() != nil {
			outcomes[i].canceled = true
			continue
		}
		g.Go(func() error {
			outcomes[i] = e.runTask(ctx, in)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		switch {
		case out.canceled:
			result.Canceled++
		case out.failure != nil:
			result.Failures = append(result.Failures, *out.failure)
		default:
			result.Records = append(result.Records, out.record)
			if out.cacheHit {
				result.CacheHits++
			}
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

// runTask scans and derives one repository. Panics are turned into failures.
func (e *Estimator) runTask(ctx context.Context, in schema.RepositoryInput) (out taskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = taskOutcome{failure: &schema.Failure{Repo: in.Repo, Path: in.Path, Error: fmt.Sprintf("panic: %v", r)}}
		}
	}()
	if ctx.Err() != nil {
		return taskOutcome{canceled: true}
	}

	scanned, hit, err := e.cachedScan(ctx, in.Path)
	if err != nil {
		if ctx.Err() != nil {
			return taskOutcome{canceled: true}
		}
		return taskOutcome{failure: &schema.Failure{Repo: in.Repo, Path: in.Path, Error: err.Error()}}
	}
	return taskOutcome{record: e.buildRecord(in, scanned), cacheHit: hit}
}

// buildRecord folds a scan result and the input line metrics into a record.
func (e *Estimator) buildRecord(in schema.RepositoryInput, scanned schema.ScanResult) schema.RepositoryRecord {
	counts := make(schema.MovementCounts, len(scanned.Counts))
	for _, cat := range e.table.Categories() {
		counts[cat] = scanned.Counts[cat]
	}
	return schema.RepositoryRecord{
		Repo:           in.Repo,
		LineMetrics:    in.LineMetrics,
		Movements:      counts,
		FilesScanned:   scanned.FilesScanned,
		DerivedMetrics: derive.Derive(counts, in.LineMetrics, e.table, e.precision),
		Error:          in.UpstreamErr,
	}
}

// isMissing reports whether path is absent or not a directory. Other stat
// errors are left for the scanner to report as a failure.
func isMissing(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return !info.IsDir()
}
