// Package core has the estimation pipeline: batch orchestration across
// repositories, scan caching and run tracking.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/cfpscan/core/scan"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/inventory"
	"github.com/huangsam/cfpscan/internal/outwriter"
	"github.com/huangsam/cfpscan/schema"
)

// ExecuteEstimate loads the inventory, runs the batch and writes the
// resulting metrics. It serves as the main entry point for 'estimate'.
func ExecuteEstimate(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	inputs, source, err := loadInputs(cfg)
	if err != nil {
		return err
	}
	if !shouldSuppressHeader(ctx) {
		logEstimateHeader(cfg, source, len(inputs))
	}
	for _, in := range inputs {
		if in.UpstreamErr != "" {
			contract.LogWarn(fmt.Sprintf("Line metrics for %s", in.Repo), fmt.Errorf("%s", in.UpstreamErr))
		}
	}

	result, err := RunBatch(ctx, cfg, mgr, inputs)
	if err != nil {
		return err
	}
	for _, f := range result.Failures {
		contract.LogWarn(fmt.Sprintf("Scan failed for %s", f.Repo), fmt.Errorf("%s", f.Error))
	}
	if ctx.Err() != nil {
		contract.LogWarn("Estimation interrupted", ctx.Err())
	}

	if err := outwriter.WriteBatchResult(result, cfg, cfg.ResolveOutputFile(), time.Since(start)); err != nil {
		return err
	}
	return outwriter.PrintBatchSummary(result, cfg)
}

// loadInputs reads the inventory selected by cfg.
func loadInputs(cfg *contract.Config) ([]schema.RepositoryInput, inventory.Source, error) {
	return inventory.Load(inventory.Options{
		ReposDir:      cfg.ReposDir,
		ELOCFile:      cfg.ELOCFile,
		InventoryFile: cfg.InventoryFile,
	})
}

// ExecuteScan estimates a single repository at cfg.RepoPath using the line
// metrics given on the command line.
func ExecuteScan(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	record, err := EstimateRepository(ctx, cfg, mgr, cfg.RepoPath, cfg.LineMetrics)
	if err != nil {
		return err
	}
	result := &schema.BatchResult{
		Categories: cfg.Taxonomy.Categories(),
		Records:    []schema.RepositoryRecord{*record},
		Workers:    1,
		Duration:   time.Since(start),
	}
	return outwriter.WriteBatchResult(result, cfg, cfg.OutputFile, result.Duration)
}

// ExecuteTaxonomy prints the active movement taxonomy.
func ExecuteTaxonomy(_ context.Context, cfg *contract.Config, asYAML bool) error {
	if asYAML {
		return outwriter.WriteTaxonomyYAML(cfg.Taxonomy, cfg)
	}
	return outwriter.WriteTaxonomy(cfg.Taxonomy, cfg)
}

// RunBatch estimates all inputs and records the run when tracking is on.
func RunBatch(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, inputs []schema.RepositoryInput) (*schema.BatchResult, error) {
	scanner := scan.NewScanner(cfg.Taxonomy, cfg.Policy)
	estimator := NewEstimator(cfg, scanner, mgr)

	tracker := beginTracking(ctx, cfg, mgr)
	result, err := estimator.Run(ctx, inputs)
	if err != nil {
		tracker.end(0, 0)
		return nil, err
	}
	for _, rec := range result.Records {
		tracker.record(rec)
	}
	tracker.end(len(result.Records), len(result.Failures))
	return result, nil
}

// EstimateRepository scans and derives one repository path outside of a
// batch. Unlike RunBatch, a missing path is an error here.
func EstimateRepository(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, path string, lines schema.LineMetrics) (*schema.RepositoryRecord, error) {
	if isMissing(path) {
		return nil, fmt.Errorf("repository path %s does not exist or is not a directory", path)
	}
	estimator := NewEstimator(cfg, scan.NewScanner(cfg.Taxonomy, cfg.Policy), mgr)
	out := estimator.runTask(ctx, schema.RepositoryInput{
		Repo:        repoName(path),
		Path:        path,
		LineMetrics: lines,
		HasMetrics:  lines != (schema.LineMetrics{}),
	})
	switch {
	case out.canceled:
		return nil, ctx.Err()
	case out.failure != nil:
		return nil, fmt.Errorf("scan %s: %s", path, out.failure.Error)
	}
	return &out.record, nil
}
