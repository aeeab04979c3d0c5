// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/activity/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the Activity MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Activity Graph Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
	}

	// --- 1. Tool: list_graphs ---
	s.AddTool(mcp.NewTool("list_graphs",
		mcp.WithDescription("List the predefined activity graphs, their metrics and every metric known to the history store."),
	), h.handleListGraphs)

	// --- 2. Tool: get_graph ---
	s.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Build the activity graph of a project branch: aligned series per sub-graph, events and analysis count."),
		mcp.WithString("project", mcp.Description("Project key (defaults to the configured project).")),
		mcp.WithString("branch", mcp.Description("Branch name (defaults to the configured branch).")),
		mcp.WithString("graph", mcp.Description("Graph type. Defaults to the configured graph."),
			mcp.Enum("issues", "coverage", "duplications", "remediation", "custom")),
		mcp.WithString("metrics", mcp.Description("Comma-separated metric keys for the custom graph.")),
		mcp.WithString("start", mcp.Description("Window start (RFC3339, YYYY-MM-DD or 'N units ago').")),
		mcp.WithString("end", mcp.Description("Window end (RFC3339, YYYY-MM-DD or 'N units ago').")),
		mcp.WithString("select_date", mcp.Description("Pin the tooltip to the sample closest to this date.")),
	), h.handleGetGraph)

	// --- 3. Tool: resolve_tooltip ---
	s.AddTool(mcp.NewTool("resolve_tooltip",
		mcp.WithDescription("Resolve the tooltip of the sample closest to a date: values, breakdown and events."),
		mcp.WithString("date", mcp.Description("The date to inspect."), mcp.Required()),
		mcp.WithString("project", mcp.Description("Project key (defaults to the configured project).")),
		mcp.WithString("branch", mcp.Description("Branch name (defaults to the configured branch).")),
		mcp.WithString("graph", mcp.Description("Graph type. Defaults to the configured graph."),
			mcp.Enum("issues", "coverage", "duplications", "remediation", "custom")),
		mcp.WithString("metrics", mcp.Description("Comma-separated metric keys for the custom graph.")),
	), h.handleResolveTooltip)

	return s
}

// StartMCPServer starts the Activity MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}
