package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/huangsam/apigrade/core"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// defaultRunsLimit is the number of runs list_runs returns without a limit.
const defaultRunsLimit = 10

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
	suite   core.Suite
	logger  *zap.Logger
}

func (h *toolHandler) handleListOperations(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonData, _ := json.MarshalIndent(core.CatalogModel(h.suite), "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleCallOperation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opID := request.GetString("operation_id", "")
	if opID == "" {
		return mcp.NewToolResultError("operation_id is required"), nil
	}

	cfg, err := h.targetConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid call parameters: %v", err)), nil
	}

	var params schema.CallParams
	for key, dst := range map[string]*map[string]any{"body": &params.Body, "query": &params.Query, "path": &params.Path} {
		obj, err := parseObject(request.GetString(key, ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid %s: %v", key, err)), nil
		}
		*dst = obj
	}

	res, err := core.CallOperation(ctx, cfg, h.suite.Catalog, opID, params, h.logger)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("call failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGradeService(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.targetConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid grading parameters: %v", err)), nil
	}
	cfg.Attach = true
	cfg.Workers = 1
	cfg.Targets = []contract.Target{{
		Name:      request.GetString("name", "attached"),
		ProjectID: request.GetString("project_id", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
	}}

	reports, err := core.GradeTargets(ctx, cfg, h.mgr, h.suite, h.logger)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("grading failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(reports[0], "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListRuns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultRunsLimit)
	if limit < 1 {
		return mcp.NewToolResultError(fmt.Sprintf("limit must be at least 1 (received %d)", limit)), nil
	}

	var store contract.RunStore
	if h.mgr != nil {
		store = h.mgr.GetRunStore()
	}
	if store == nil {
		return mcp.NewToolResultError("run history is not initialized"), nil
	}

	runs, err := store.GetAllRuns()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing runs failed: %v", err)), nil
	}

	// Most recent first
	slices.Reverse(runs)
	if len(runs) > limit {
		runs = runs[:limit]
	}

	jsonData, _ := json.MarshalIndent(runs, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

// targetConfig clones the base config and applies the host and port overrides.
func (h *toolHandler) targetConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	if host := request.GetString("host", ""); host != "" {
		cfg.Host = host
	}
	if port := request.GetInt("port", 0); port != 0 {
		cfg.Port = port
	}
	if cfg.Host == "" {
		cfg.Host = contract.DefaultHost
	}
	if cfg.Port < 1 || cfg.Port > math.MaxUint16 {
		return nil, fmt.Errorf("port must be between 1 and %d (received %d)", math.MaxUint16, cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = contract.DefaultTimeout
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = contract.DefaultStartupTimeout
	}
	return cfg, nil
}

// parseObject decodes an optional JSON object argument.
func parseObject(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("must be a JSON object: %w", err)
	}
	return obj, nil
}
