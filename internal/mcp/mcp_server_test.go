package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/cfpscan/core/scan"
	"github.com/huangsam/cfpscan/core/taxonomy"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/iocache"
	mcp_internal "github.com/huangsam/cfpscan/internal/mcp"
	"github.com/huangsam/cfpscan/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerSource = `package api

func Handle(w http.ResponseWriter) {
	w.Write(nil)
}
`

func baseConfig() *contract.Config {
	return &contract.Config{
		Taxonomy:     taxonomy.Default(),
		Policy:       scan.DefaultPolicy(),
		Workers:      2,
		Precision:    2,
		CacheBackend: schema.NoneBackend,
	}
}

func writeRepo(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api.go"), []byte(handlerSource), 0o644))
	return dir
}

func callTool(t *testing.T, ctx context.Context, tool func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := tool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotEmpty(t, res.Content)
	return res
}

func textOf(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	var mgr contract.CacheManager
	s := mcp_internal.NewMCPServer(baseConfig(), mgr)
	ctx := context.Background()

	t.Run("estimate_repository missing repo_path", func(t *testing.T) {
		tool := s.GetTool("estimate_repository")
		require.NotNil(t, tool, "Tool estimate_repository should exist")

		res := callTool(t, ctx, tool.Handler, "estimate_repository", map[string]any{"repo_path": ""})
		assert.True(t, res.IsError)
		assert.Contains(t, textOf(res), "repo_path is required")
	})

	t.Run("estimate_repository negative line count", func(t *testing.T) {
		tool := s.GetTool("estimate_repository")
		require.NotNil(t, tool)

		res := callTool(t, ctx, tool.Handler, "estimate_repository", map[string]any{
			"repo_path": t.TempDir(),
			"code":      -5.0,
		})
		assert.True(t, res.IsError)
		assert.Contains(t, textOf(res), "invalid line metrics")
	})

	t.Run("estimate_repository missing directory", func(t *testing.T) {
		tool := s.GetTool("estimate_repository")
		require.NotNil(t, tool)

		res := callTool(t, ctx, tool.Handler, "estimate_repository", map[string]any{
			"repo_path": filepath.Join(t.TempDir(), "ghost"),
		})
		assert.True(t, res.IsError)
		assert.Contains(t, textOf(res), "does not exist")
	})

	t.Run("estimate_corpus negative limit", func(t *testing.T) {
		tool := s.GetTool("estimate_corpus")
		require.NotNil(t, tool)

		res := callTool(t, ctx, tool.Handler, "estimate_corpus", map[string]any{"limit": -1.0})
		assert.True(t, res.IsError)
		assert.Contains(t, textOf(res), "limit cannot be negative")
	})

	t.Run("estimate_corpus empty directory", func(t *testing.T) {
		tool := s.GetTool("estimate_corpus")
		require.NotNil(t, tool)

		res := callTool(t, ctx, tool.Handler, "estimate_corpus", map[string]any{"repos_dir": t.TempDir()})
		assert.True(t, res.IsError)
	})
}

func TestMCPServerHandlers_EstimateRepository(t *testing.T) {
	dir := writeRepo(t, t.TempDir(), "api")
	s := mcp_internal.NewMCPServer(baseConfig(), nil)

	tool := s.GetTool("estimate_repository")
	require.NotNil(t, tool)

	res := callTool(t, context.Background(), tool.Handler, "estimate_repository", map[string]any{
		"repo_path": dir,
		"code":      4.0,
		"blanks":    1.0,
	})
	require.False(t, res.IsError, textOf(res))

	var record schema.RepositoryRecord
	require.NoError(t, json.Unmarshal([]byte(textOf(res)), &record))
	assert.Equal(t, "api", record.Repo)
	assert.Equal(t, 1, record.FilesScanned)
	assert.Equal(t, 5, record.TotalELOC)
	assert.Equal(t, 1, record.Movements[schema.EntryMovement])
	assert.Positive(t, record.CFPTotal)
}

func TestMCPServerHandlers_EstimateCorpus(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root, "alpha")
	writeRepo(t, root, "beta")

	cfg := baseConfig()
	cfg.ReposDir = root
	s := mcp_internal.NewMCPServer(cfg, nil)

	tool := s.GetTool("estimate_corpus")
	require.NotNil(t, tool)

	res := callTool(t, context.Background(), tool.Handler, "estimate_corpus", map[string]any{"limit": 1.0})
	require.False(t, res.IsError, textOf(res))

	var result schema.BatchResult
	require.NoError(t, json.Unmarshal([]byte(textOf(res)), &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, "alpha", result.Records[0].Repo, "ties break by name")
	assert.Empty(t, result.Failures)
}

func TestMCPServerHandlers_GetTaxonomy(t *testing.T) {
	s := mcp_internal.NewMCPServer(baseConfig(), nil)

	tool := s.GetTool("get_taxonomy")
	require.NotNil(t, tool)

	res := callTool(t, context.Background(), tool.Handler, "get_taxonomy", nil)
	require.False(t, res.IsError)

	var specs []taxonomy.CategorySpec
	require.NoError(t, json.Unmarshal([]byte(textOf(res)), &specs))
	require.Len(t, specs, len(schema.BuiltinCategories))
	assert.Equal(t, schema.EntryMovement, specs[0].Category)
}

func TestWithMemoryCache(t *testing.T) {
	t.Run("nil manager gets a memory store", func(t *testing.T) {
		mgr, err := mcp_internal.WithMemoryCache(schema.NoneBackend, nil)
		require.NoError(t, err)
		assert.IsType(t, &iocache.MemoryCacheStore{}, mgr.GetScanStore())
		assert.Nil(t, mgr.GetAnalysisStore())
	})

	t.Run("none backend keeps the analysis store", func(t *testing.T) {
		analysis := &iocache.MockAnalysisStore{}
		base := iocache.NewCacheStoreManager(nil, analysis)
		mgr, err := mcp_internal.WithMemoryCache(schema.NoneBackend, base)
		require.NoError(t, err)
		assert.IsType(t, &iocache.MemoryCacheStore{}, mgr.GetScanStore())
		assert.Same(t, analysis, mgr.GetAnalysisStore())
	})

	t.Run("configured backend is left alone", func(t *testing.T) {
		scanStore := &iocache.MockCacheStore{}
		base := iocache.NewCacheStoreManager(scanStore, nil)
		mgr, err := mcp_internal.WithMemoryCache(schema.SQLiteBackend, base)
		require.NoError(t, err)
		assert.Same(t, base, mgr)
	})
}
