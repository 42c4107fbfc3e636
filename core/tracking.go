package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/schema"
)

// runTracker records one estimation run in the analysis store. A zero
// tracker is a no-op, so callers never check whether tracking is on.
type runTracker struct {
	store contract.AnalysisStore
	id    int64
}

// beginTracking opens a run when an analysis store is configured.
func beginTracking(_ context.Context, cfg *contract.Config, mgr contract.CacheManager) runTracker {
	if mgr == nil {
		return runTracker{}
	}
	store := mgr.GetAnalysisStore()
	if store == nil {
		return runTracker{}
	}
	configParams := map[string]any{
		"repos_dir":     cfg.ReposDir,
		"eloc_file":     cfg.ELOCFile,
		"workers":       cfg.Workers,
		"precision":     cfg.Precision,
		"extensions":    cfg.Policy.Extensions,
		"exclude_dirs":  cfg.Policy.ExcludeDirs,
		"include_tests": cfg.Policy.IncludeTests,
		"categories":    cfg.Taxonomy.Categories(),
		"taxonomy":      cfg.Taxonomy.Fingerprint(),
	}
	id, err := store.BeginAnalysis(time.Now(), configParams)
	if err != nil {
		contract.LogWarn("Analysis tracking initialization failed", err)
		return runTracker{}
	}
	return runTracker{store: store, id: id}
}

// record stores one finalized repository record.
func (t runTracker) record(rec schema.RepositoryRecord) {
	if t.store == nil || t.id <= 0 {
		return
	}
	if err := t.store.RecordRepository(t.id, rec); err != nil {
		logTrackingError("RecordRepository", rec.Repo, err)
	}
}

// end closes the run with its totals.
func (t runTracker) end(totalRepositories, totalFailures int) {
	if t.store == nil || t.id <= 0 {
		return
	}
	if err := t.store.EndAnalysis(t.id, time.Now(), totalRepositories, totalFailures); err != nil {
		contract.LogWarn("Failed to finalize analysis tracking", err)
	}
}

// logTrackingError logs database tracking errors to stderr without disrupting the run.
func logTrackingError(operation, repo string, err error) {
	contract.LogWarn(fmt.Sprintf("Analysis tracking failed for %s on %s", operation, repo), err)
}
