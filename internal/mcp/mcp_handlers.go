package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/cfpscan/core"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/inventory"
	"github.com/huangsam/cfpscan/internal/outwriter"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

func (h *toolHandler) handleEstimateRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("repo_path", "")
	if path == "" {
		return mcp.NewToolResultError("repo_path is required"), nil
	}
	lines, err := contract.BuildLineMetrics(
		request.GetInt("code", 0),
		request.GetInt("comments", 0),
		request.GetInt("blanks", 0),
		request.GetInt("total_eloc", 0),
	)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid line metrics: %v", err)), nil
	}

	cfg := h.baseCfg.Clone()
	record, err := core.EstimateRepository(core.WithSuppressHeader(ctx), cfg, h.mgr, path, lines)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("estimation failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(record, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleEstimateCorpus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if d := request.GetString("repos_dir", ""); d != "" {
		cfg.ReposDir = d
	}
	if f := request.GetString("eloc_file", ""); f != "" {
		cfg.ELOCFile = f
	}
	limit := request.GetInt("limit", 0)
	if limit < 0 {
		return mcp.NewToolResultError("limit cannot be negative"), nil
	}

	inputs, _, err := inventory.Load(inventory.Options{
		ReposDir:      cfg.ReposDir,
		ELOCFile:      cfg.ELOCFile,
		InventoryFile: cfg.InventoryFile,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inventory failed: %v", err)), nil
	}

	result, err := core.RunBatch(core.WithSuppressHeader(ctx), cfg, h.mgr, inputs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("estimation failed: %v", err)), nil
	}

	result.Records = outwriter.RankRecords(result.Records, limit)

	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetTaxonomy(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonData, _ := json.MarshalIndent(h.baseCfg.Taxonomy.Specs(), "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
