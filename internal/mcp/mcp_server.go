// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/iocache"
	"github.com/huangsam/cfpscan/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the cfpscan MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"cfpscan Estimation Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	s.AddTool(mcp.NewTool("estimate_repository",
		mcp.WithDescription("Estimate COSMIC Function Points for one local repository by counting data movements in its source files."),
		mcp.WithString("repo_path", mcp.Description("Path to the repository directory."), mcp.Required()),
		mcp.WithNumber("code", mcp.Description("Lines of code measured by a line counter. Needed for cfp_per_kloc.")),
		mcp.WithNumber("comments", mcp.Description("Comment lines measured by a line counter.")),
		mcp.WithNumber("blanks", mcp.Description("Blank lines measured by a line counter.")),
		mcp.WithNumber("total_eloc", mcp.Description("Total lines. Defaults to code + comments + blanks.")),
	), h.handleEstimateRepository)

	s.AddTool(mcp.NewTool("estimate_corpus",
		mcp.WithDescription("Estimate every repository under a directory, using a line metrics CSV when one exists."),
		mcp.WithString("repos_dir", mcp.Description("Directory holding one sub-directory per repository.")),
		mcp.WithString("eloc_file", mcp.Description("Line metrics CSV with repo, code, comments, blanks and total_eloc columns.")),
		mcp.WithNumber("limit", mcp.Description("Return only the top records by cfp_total.")),
	), h.handleEstimateCorpus)

	s.AddTool(mcp.NewTool("get_taxonomy",
		mcp.WithDescription("List the active movement categories with their detection rules and weights."),
	), h.handleGetTaxonomy)

	return s
}

// StartMCPServer starts the cfpscan MCP server on stdio. Without a configured
// scan cache, repeated tool calls share an in-process LRU cache.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	mgr, err := withMemoryCache(baseCfg.CacheBackend, mgr)
	if err != nil {
		return err
	}
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}

// withMemoryCache swaps in a memory scan store when backend caches nothing.
// The analysis store of mgr is kept.
func withMemoryCache(backend schema.DatabaseBackend, mgr contract.CacheManager) (contract.CacheManager, error) {
	var analysis contract.AnalysisStore
	if mgr != nil {
		if backend != schema.NoneBackend && backend != "" && mgr.GetScanStore() != nil {
			return mgr, nil
		}
		analysis = mgr.GetAnalysisStore()
	}
	store, err := iocache.NewMemoryCacheStore(iocache.DefaultMemoryEntries)
	if err != nil {
		return nil, err
	}
	return iocache.NewCacheStoreManager(store, analysis), nil
}
