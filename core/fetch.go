package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/inventory"
	"golang.org/x/sync/errgroup"
)

// FetchResult reports what a fetch did per repository name.
type FetchResult struct {
	Cloned   []string
	Present  []string
	NoURL    []string
	Failures map[string]string
	Canceled int
}

// ExecuteFetch clones the repositories listed in the inventory file that are
// not yet under the repos directory. It serves as the main entry point for
// 'fetch'.
func ExecuteFetch(ctx context.Context, cfg *contract.Config, client contract.GitClient) error {
	if cfg.InventoryFile == "" {
		return errors.New("--inventory-file is required for fetch")
	}
	entries, err := inventory.ReadRepoList(cfg.InventoryFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		return fmt.Errorf("create repos directory: %w", err)
	}
	if !shouldSuppressHeader(ctx) {
		logFetchHeader(cfg, len(entries))
	}

	start := time.Now()
	res := FetchRepositories(ctx, client, entries, cfg.ReposDir, cfg.Workers)
	for _, name := range slices.Sorted(maps.Keys(res.Failures)) {
		contract.LogWarn(fmt.Sprintf("Clone failed for %s", name), errors.New(res.Failures[name]))
	}
	_, err = fmt.Fprintf(os.Stderr, "✅ Fetched %d repositories (present %d, no url %d, failed %d, canceled %d) in %v.\n",
		len(res.Cloned), len(res.Present), len(res.NoURL), len(res.Failures), res.Canceled, time.Since(start).Round(time.Millisecond))
	return err
}

// FetchRepositories clones every entry whose local directory is missing,
// running at most workers clones at once. A failed clone leaves no directory
// behind so the next fetch retries it.
func FetchRepositories(ctx context.Context, client contract.GitClient, entries []inventory.RepoEntry, reposDir string, workers int) FetchResult {
	res := FetchResult{Failures: map[string]string{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(max(1, min(workers, contract.MaxWorkers)))
	for _, e := range entries {
		name := e.LocalName()
		dest := filepath.Join(reposDir, name)
		switch {
		case !isMissing(dest):
			res.Present = append(res.Present, name)
			continue
		case e.CloneURL == "":
			res.NoURL = append(res.NoURL, name)
			continue
		case ctx.Err() != nil:
			mu.Lock()
			res.Canceled++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			err := client.Clone(ctx, e.CloneURL, dest)
			if err != nil {
				_ = os.RemoveAll(dest)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Cloned = append(res.Cloned, name)
			case ctx.Err() != nil:
				res.Canceled++
			default:
				res.Failures[name] = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	slices.Sort(res.Cloned)
	return res
}
