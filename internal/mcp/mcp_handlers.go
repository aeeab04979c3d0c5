package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/activity/core"
	"github.com/huangsam/activity/internal/contract"
	"github.com/huangsam/activity/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(jsonData))
}

// graphConfig clones the base config and applies the project and graph arguments of request.
func (h *toolHandler) graphConfig(request mcp.CallToolRequest, selectDate string) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	if p := request.GetString("project", ""); p != "" {
		cfg.Project = p
	}
	if b := request.GetString("branch", ""); b != "" {
		cfg.Branch = b
	}
	if cfg.Project == "" {
		return nil, contract.ErrNoProject
	}
	err := contract.RevalidateGraph(cfg,
		request.GetString("graph", ""),
		request.GetString("metrics", ""),
		request.GetString("start", ""),
		request.GetString("end", ""),
		selectDate,
	)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (h *toolHandler) buildGraph(ctx context.Context, cfg *contract.Config) (schema.GraphResult, error) {
	src, err := core.OpenSource(ctx, cfg, h.mgr)
	if err != nil {
		return schema.GraphResult{}, err
	}
	defer func() { _ = src.Close() }()
	return core.BuildGraph(ctx, cfg, src.Fetcher)
}

func (h *toolHandler) handleListGraphs(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var store contract.HistoryStore
	if h.mgr != nil {
		store = h.mgr.GetHistoryStore()
	}
	catalog, err := core.MetricsCatalog(ctx, store, h.baseCfg.MaxCustomMetrics)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing graphs failed: %v", err)), nil
	}
	return jsonResult(catalog), nil
}

func (h *toolHandler) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.graphConfig(request, request.GetString("select_date", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid graph parameters: %v", err)), nil
	}

	result, err := h.buildGraph(ctx, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("building graph failed: %v", err)), nil
	}
	return jsonResult(result), nil
}

func (h *toolHandler) handleResolveTooltip(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := request.GetString("date", "")
	if date == "" {
		return mcp.NewToolResultError("invalid tooltip parameters: date is required"), nil
	}
	cfg, err := h.graphConfig(request, date)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tooltip parameters: %v", err)), nil
	}

	result, err := h.buildGraph(ctx, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("building graph failed: %v", err)), nil
	}
	if result.TooltipDetails == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no samples to inspect for %s", cfg.ProjectKey())), nil
	}
	return jsonResult(result.TooltipDetails), nil
}
