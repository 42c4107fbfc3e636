package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/schema"
)

// currentCacheVersion defines the version of the cache schema
const currentCacheVersion = 1

// cacheTTL bounds how long a cached scan is trusted even when the tree
// fingerprint still matches.
const cacheTTL = 7 * 24 * time.Hour

// cachedScan returns the scan of root, reusing a cached result when the
// tree, taxonomy and policy are unchanged. Cache problems never fail a task.
func (e *Estimator) cachedScan(ctx context.Context, root string) (schema.ScanResult, bool, error) {
	store := e.scanStore()
	if store == nil {
		res, err := e.scanner.Scan(ctx, root)
		return res, false, err
	}

	key, err := e.generateCacheKey(ctx, root)
	if err != nil {
		// Fingerprinting failed; let the scanner surface the real problem
		res, scanErr := e.scanner.Scan(ctx, root)
		return res, false, scanErr
	}

	if result := checkCacheHit(store, key); result != nil {
		return *result, true, nil
	}

	res, err := computeAndStore(ctx, e.scanner, store, root, key)
	return res, false, err
}

// scanStore returns the scan cache store or nil when caching is off.
func (e *Estimator) scanStore() contract.CacheStore {
	if e.mgr == nil {
		return nil
	}
	return e.mgr.GetScanStore()
}

// checkCacheHit attempts to retrieve and validate a cached result
func checkCacheHit(store contract.CacheStore, key string) *schema.ScanResult {
	data, version, ts, err := store.Get(key)
	if err != nil {
		return nil // Cache miss
	}

	// Validate version and staleness
	if version != currentCacheVersion || time.Since(time.Unix(ts, 0)) > cacheTTL {
		return nil
	}
	var result schema.ScanResult
	if err := json.Unmarshal(data, &result); err != nil || result.Counts == nil {
		return nil
	}
	return &result
}

// computeAndStore scans root and stores the result in cache. Partial scans
// are not stored: fixing a file's permissions leaves the fingerprint as is.
func computeAndStore(ctx context.Context, scanner contract.RepositoryScanner, store contract.CacheStore, root, key string) (schema.ScanResult, error) {
	result, err := scanner.Scan(ctx, root)
	if err != nil {
		return result, err
	}
	if result.FilesUnreadable > 0 {
		return result, nil
	}

	if data, err := json.Marshal(result); err == nil {
		if err := store.Set(key, data, currentCacheVersion, time.Now().Unix()); err != nil {
			contract.LogWarn(fmt.Sprintf("Cache write failed for %s", root), err)
		}
	}
	return result, nil
}

// generateCacheKey combines the repository location, its tree fingerprint
// and the taxonomy fingerprint into one key.
func (e *Estimator) generateCacheKey(ctx context.Context, root string) (string, error) {
	treeHash, err := e.scanner.Fingerprint(ctx, root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	key := fmt.Sprintf("%s:%s:%s", abs, treeHash, e.table.Fingerprint())
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key))), nil
}
