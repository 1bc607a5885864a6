package mcp_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/huangsam/apigrade/core"
	"github.com/huangsam/apigrade/core/filestorage"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/internal/filestore"
	mcp_internal "github.com/huangsam/apigrade/internal/mcp"
	"github.com/huangsam/apigrade/internal/runstore"
	"github.com/huangsam/apigrade/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newServer(t *testing.T, baseCfg *contract.Config, mgr contract.StoreManager) *server.MCPServer {
	t.Helper()
	suite, err := filestorage.Suite(context.Background(), "")
	require.NoError(t, err)
	return mcp_internal.NewMCPServer(baseCfg, mgr, suite, zaptest.NewLogger(t))
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	return res
}

func text(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

// referencePort starts the file-storage service and returns its port.
func referencePort(t *testing.T) int {
	t.Helper()
	store, err := filestore.New(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	_, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func baseConfig() *contract.Config {
	return &contract.Config{
		Host:           "127.0.0.1",
		Port:           8080,
		Timeout:        5 * time.Second,
		StartupTimeout: 5 * time.Second,
		Workers:        1,
		RunsBackend:    schema.NoneBackend,
	}
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	s := newServer(t, baseConfig(), nil)

	t.Run("call_operation missing operation_id", func(t *testing.T) {
		res := callTool(t, s, "call_operation", map[string]any{"operation_id": ""})
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, text(res), "operation_id is required")
	})

	t.Run("call_operation invalid body", func(t *testing.T) {
		res := callTool(t, s, "call_operation", map[string]any{
			"operation_id": "createFile",
			"body":         "[1, 2]",
		})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "invalid body")
	})

	t.Run("call_operation unknown operation", func(t *testing.T) {
		res := callTool(t, s, "call_operation", map[string]any{"operation_id": "nope"})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), core.ErrUnknownOperation.Error())
	})

	t.Run("grade_service invalid port", func(t *testing.T) {
		res := callTool(t, s, "grade_service", map[string]any{"port": 70000.0})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "port must be between 1 and 65535")
	})

	t.Run("list_runs without history", func(t *testing.T) {
		res := callTool(t, s, "list_runs", nil)
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "run history is not initialized")
	})

	t.Run("list_runs invalid limit", func(t *testing.T) {
		res := callTool(t, s, "list_runs", map[string]any{"limit": 0.0})
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "limit must be at least 1")
	})
}

func TestMCPServerHandlers_ListOperations(t *testing.T) {
	s := newServer(t, baseConfig(), nil)
	res := callTool(t, s, "list_operations", nil)
	require.False(t, res.IsError)

	var model schema.CatalogRenderModel
	require.NoError(t, json.Unmarshal([]byte(text(res)), &model))
	assert.Equal(t, filestorage.EmbeddedSource, model.Source)
	assert.Len(t, model.Operations, 5)
}

func TestMCPServerHandlers_CallAndGrade(t *testing.T) {
	port := referencePort(t)

	store, err := runstore.NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	mgr := new(runstore.MockStoreManager)
	mgr.On("GetRunStore").Return(store)

	s := newServer(t, baseConfig(), mgr)

	t.Run("call_operation", func(t *testing.T) {
		res := callTool(t, s, "call_operation", map[string]any{
			"operation_id": "createFile",
			"port":         float64(port),
			"body":         `{"filename": "hello.txt", "content": "hi"}`,
		})
		require.False(t, res.IsError, text(res))

		var call schema.CallResult
		require.NoError(t, json.Unmarshal([]byte(text(res)), &call))
		assert.Equal(t, 200, call.StatusCode)
	})

	t.Run("grade_service", func(t *testing.T) {
		// A fresh service, so the uploads above do not show up in listings
		gradePort := referencePort(t)
		res := callTool(t, s, "grade_service", map[string]any{
			"port": float64(gradePort),
			"name": "agent",
		})
		require.False(t, res.IsError, text(res))

		var report schema.RunReport
		require.NoError(t, json.Unmarshal([]byte(text(res)), &report))
		assert.Equal(t, "agent", report.Name)
		assert.Equal(t, "127.0.0.1:"+strconv.Itoa(gradePort), report.ProjectID)
		assert.Equal(t, 1.0, report.Rating, "errors: %v", report.Errors)
	})

	t.Run("list_runs", func(t *testing.T) {
		res := callTool(t, s, "list_runs", map[string]any{"limit": 5.0})
		require.False(t, res.IsError, text(res))

		var runs []schema.RunRecord
		require.NoError(t, json.Unmarshal([]byte(text(res)), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, "agent", runs[0].Name)
	})
}
