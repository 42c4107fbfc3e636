package iocache

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/cfpscan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetGlobals lets a test run InitStores again.
func resetGlobals(t *testing.T) {
	t.Helper()
	initOnce = sync.Once{}
	closeOnce = sync.Once{}
	Manager = &CacheStoreManager{}
}

func TestInitStores(t *testing.T) {
	t.Run("sqlite files", func(t *testing.T) {
		resetGlobals(t)
		dir := t.TempDir()
		cachePath := filepath.Join(dir, "cache.db")
		analysisPath := filepath.Join(dir, "analysis.db")

		err := InitStores(schema.SQLiteBackend, cachePath, schema.SQLiteBackend, analysisPath)
		require.NoError(t, err)
		assert.NotNil(t, Manager.GetScanStore())
		assert.NotNil(t, Manager.GetAnalysisStore())
		CloseCaching()

		for _, p := range []string{cachePath, analysisPath} {
			_, err := os.Stat(p)
			assert.NoError(t, err, "database file %s should be created", p)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		resetGlobals(t)
		path := filepath.Join(t.TempDir(), "cache.db")
		assert.NoError(t, InitStores(schema.SQLiteBackend, path, "", ""))
		first := Manager.GetScanStore()
		assert.NoError(t, InitStores(schema.SQLiteBackend, path, "", ""))
		assert.Same(t, first, Manager.GetScanStore())
		CloseCaching()
		CloseCaching()
	})

	t.Run("none backend", func(t *testing.T) {
		resetGlobals(t)
		require.NoError(t, InitStores(schema.NoneBackend, "", schema.NoneBackend, ""))

		store := Manager.GetScanStore()
		require.NotNil(t, store)
		_, _, _, err := store.Get("anything")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, store.Set("k", []byte("v"), 1, time.Now().Unix()))

		id, err := Manager.GetAnalysisStore().BeginAnalysis(time.Now(), nil)
		assert.NoError(t, err)
		assert.Zero(t, id)
		CloseCaching()
	})

	t.Run("empty backends leave stores unset", func(t *testing.T) {
		resetGlobals(t)
		require.NoError(t, InitStores("", "", "", ""))
		assert.Nil(t, Manager.GetScanStore())
		assert.Nil(t, Manager.GetAnalysisStore())
	})

	t.Run("unsupported backend", func(t *testing.T) {
		resetGlobals(t)
		err := InitStores("oracle", "", "", "")
		assert.ErrorContains(t, err, "failed to initialize scan caching")
	})

	t.Run("analysis failure closes scan store", func(t *testing.T) {
		resetGlobals(t)
		err := InitStores(schema.SQLiteBackend, filepath.Join(t.TempDir(), "c.db"), "oracle", "")
		assert.ErrorContains(t, err, "failed to initialize analysis store")
		assert.Nil(t, Manager.GetScanStore())
	})
}

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{"simple", "cfpscan_scan_cache", false},
		{"leading underscore", "_cache", false},
		{"digits after first", "cache2", false},
		{"empty", "", true},
		{"leading digit", "2cache", true},
		{"injection", "cache; DROP TABLE users", true},
		{"dash", "scan-cache", true},
		{"quote", `cache"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTableName(tt.table)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`runs`", quoteTableName("runs", schema.MySQLBackend))
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.PostgreSQLBackend))
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.SQLiteBackend))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholders(schema.PostgreSQLBackend, 3))
	assert.Equal(t, "?, ?, ?", placeholders(schema.MySQLBackend, 3))
	assert.Equal(t, "?", placeholders(schema.SQLiteBackend, 1))
}

func TestGetUpsertQuery(t *testing.T) {
	tests := []struct {
		backend  schema.DatabaseBackend
		contains string
	}{
		{schema.SQLiteBackend, "INSERT OR REPLACE"},
		{schema.MySQLBackend, "ON DUPLICATE KEY UPDATE"},
		{schema.PostgreSQLBackend, "ON CONFLICT (cache_key) DO UPDATE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			ps := &CacheStoreImpl{tableName: scanTable, backend: tt.backend}
			assert.Contains(t, ps.getUpsertQuery(), tt.contains)
		})
	}
}

func TestGetCreateTableQuery(t *testing.T) {
	assert.Contains(t, getCreateTableQuery(scanTable, schema.MySQLBackend), "BLOB NOT NULL")
	assert.Contains(t, getCreateTableQuery(scanTable, schema.PostgreSQLBackend), "BYTEA NOT NULL")
	assert.Contains(t, getCreateTableQuery(scanTable, schema.SQLiteBackend), "cache_timestamp INTEGER NOT NULL")
}

func TestSQLiteCacheStore(t *testing.T) {
	store, err := NewCacheStore(scanTable, schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, _, _, err = store.Get("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	now := time.Now().Unix()
	require.NoError(t, store.Set("key", []byte(`{"counts":{"entry":1}}`), 1, now))
	value, version, ts, err := store.Get("key")
	require.NoError(t, err)
	assert.JSONEq(t, `{"counts":{"entry":1}}`, string(value))
	assert.Equal(t, 1, version)
	assert.Equal(t, now, ts)

	// Upsert replaces
	require.NoError(t, store.Set("key", []byte(`{}`), 2, now+10))
	value, version, ts, err = store.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(value))
	assert.Equal(t, 2, version)
	assert.Equal(t, now+10, ts)

	require.NoError(t, store.Set("other", []byte(`{}`), 1, now-100))
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, now+10, status.LastEntryTime.Unix())
	assert.Equal(t, now-100, status.OldestEntryTime.Unix())
	assert.Positive(t, status.TableSizeBytes)
}

func TestNewCacheStoreErrors(t *testing.T) {
	_, err := NewCacheStore("bad-name", schema.SQLiteBackend, ":memory:")
	assert.Error(t, err)

	_, err = NewCacheStore(scanTable, "oracle", "")
	assert.ErrorContains(t, err, "unsupported backend")
}

func TestNoneCacheStore(t *testing.T) {
	store, err := NewCacheStore(scanTable, schema.NoneBackend, "")
	require.NoError(t, err)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestClearCache(t *testing.T) {
	t.Run("sqlite removes file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.db")
		store, err := NewCacheStore(scanTable, schema.SQLiteBackend, path)
		require.NoError(t, err)
		require.NoError(t, store.Close())

		require.NoError(t, ClearCache(schema.SQLiteBackend, path, ""))
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("sqlite missing file is fine", func(t *testing.T) {
		assert.NoError(t, ClearCache(schema.SQLiteBackend, filepath.Join(t.TempDir(), "nope.db"), ""))
	})

	t.Run("sqlite requires path", func(t *testing.T) {
		assert.Error(t, ClearCache(schema.SQLiteBackend, "", ""))
	})

	t.Run("none is a no-op", func(t *testing.T) {
		assert.NoError(t, ClearCache(schema.NoneBackend, "", ""))
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, ClearCache("oracle", "", ""))
	})
}

func TestCacheStoreManagerConcurrency(t *testing.T) {
	store, err := NewMemoryCacheStore(8)
	require.NoError(t, err)
	mgr := NewCacheStoreManager(store, nil)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			assert.Same(t, store, mgr.GetScanStore())
			assert.Nil(t, mgr.GetAnalysisStore())
		})
	}
	wg.Wait()
}
