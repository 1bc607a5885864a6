// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/apigrade/core"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// NewMCPServer initializes and configures the apigrade MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager, suite core.Suite, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"API Grading Server",
		"1.0.0",
		server.WithLogging(),
	)

	if logger == nil {
		logger = zap.NewNop()
	}
	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		suite:   suite,
		logger:  logger,
	}

	// --- 1. Tool: list_operations ---
	s.AddTool(mcp.NewTool("list_operations",
		mcp.WithDescription("List the operations of the OpenAPI document used for grading."),
	), h.handleListOperations)

	// --- 2. Tool: call_operation ---
	s.AddTool(mcp.NewTool("call_operation",
		mcp.WithDescription("Execute one operation of the document against a running service."),
		mcp.WithString("operation_id", mcp.Description("The operationId to execute."), mcp.Required()),
		mcp.WithString("host", mcp.Description("Host of the service (defaults to the configured host).")),
		mcp.WithNumber("port", mcp.Description("Port of the service (defaults to the configured port).")),
		mcp.WithString("body", mcp.Description("JSON object sent as the request body.")),
		mcp.WithString("query", mcp.Description("JSON object of query parameters.")),
		mcp.WithString("path", mcp.Description("JSON object of path parameters.")),
	), h.handleCallOperation)

	// --- 3. Tool: grade_service ---
	s.AddTool(mcp.NewTool("grade_service",
		mcp.WithDescription("Run the scored scenario against an already running service and return its report."),
		mcp.WithString("host", mcp.Description("Host of the service (defaults to the configured host).")),
		mcp.WithNumber("port", mcp.Description("Port of the service (defaults to the configured port).")),
		mcp.WithString("name", mcp.Description("Name recorded in the report. Defaults to 'attached'.")),
		mcp.WithString("project_id", mcp.Description("Project id recorded in the report.")),
	), h.handleGradeService)

	// --- 4. Tool: list_runs ---
	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the most recent graded runs from the run history."),
		mcp.WithNumber("limit", mcp.Description("Limit the number of runs returned (default 10).")),
	), h.handleListRuns)

	return s
}

// StartMCPServer starts the apigrade MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager, suite core.Suite, logger *zap.Logger) error {
	s := NewMCPServer(baseCfg, mgr, suite, logger)
	return server.ServeStdio(s)
}
