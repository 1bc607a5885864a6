package filestore

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target, body string) (int, map[string]any, http.Header) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec.Code, decoded, rec.Header()
}

func TestCreateFile(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"created", `{"filename":"notes.txt","content":"testcontent"}`, 200, msgCreated},
		{"missing filename", `{"content":"x"}`, 400, msgMissingFields},
		{"missing content", `{"filename":"a.txt"}`, 400, msgMissingFields},
		{"empty body", ``, 400, msgMissingFields},
		{"malformed json", `{"filename":`, 400, msgMissingFields},
		{"no extension", `{"filename":"notes","content":"x"}`, 400, msgNeedsExtension},
		{"unknown extension", `{"filename":"run.exe","content":"x"}`, 400, msgNeedsExtension},
		{"nested path", `{"filename":"../escape.txt","content":"x"}`, 400, msgNeedsExtension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			status, body, _ := do(t, s, http.MethodPost, "/api/files", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestCreateFileForm(t *testing.T) {
	s := newTestServer(t)
	form := url.Values{"filename": {"form.log"}, "content": {"line"}}
	req := httptest.NewRequest(http.MethodPost, "/api/files", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.FileExists(t, s.path("form.log"))
}

func TestListAndGetFiles(t *testing.T) {
	s := newTestServer(t)

	status, body, _ := do(t, s, http.MethodGet, "/api/files", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, []any{}, body["files"], "an empty store lists no files")

	do(t, s, http.MethodPost, "/api/files", `{"filename":"notes.txt","content":"testcontent"}`)
	do(t, s, http.MethodPost, "/api/files", `{"filename":"data.test.json","content":"{\"message\": \"jsondata\"}"}`)

	status, body, _ = do(t, s, http.MethodGet, "/api/files", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "success", body["message"])
	assert.ElementsMatch(t, []any{"notes.txt", "data.test.json"}, body["files"])

	status, body, headers := do(t, s, http.MethodGet, "/api/files/notes.txt", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "notes.txt", body["filename"])
	assert.Equal(t, "testcontent", body["content"])
	assert.Equal(t, "txt", body["extension"])
	assert.NotEmpty(t, body["uploadedDate"])
	assert.Contains(t, headers.Get("Content-Type"), "text/plain")

	_, body, _ = do(t, s, http.MethodGet, "/api/files/data.test.json", "")
	assert.Equal(t, "json", body["extension"])
	assert.Equal(t, `{"message": "jsondata"}`, body["content"])
}

func TestGetFileErrors(t *testing.T) {
	s := newTestServer(t)

	status, body, _ := do(t, s, http.MethodGet, "/api/files/filename2", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, msgNeedsExtension, body["message"])
	assert.Nil(t, body["filename"])

	status, body, _ = do(t, s, http.MethodGet, "/api/files/missing.txt", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, msgNotFound, body["message"])
}

func TestUpdateAndDeleteFile(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/files", `{"filename":"notes.txt","content":"v1"}`)

	status, body, _ := do(t, s, http.MethodPut, "/api/files/notes.txt", `{}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, msgNoContent, body["message"])

	status, _, _ = do(t, s, http.MethodPut, "/api/files/other.txt", `{"content":"v2"}`)
	assert.Equal(t, 404, status)

	status, body, _ = do(t, s, http.MethodPut, "/api/files/notes.txt", `{"content":"v2"}`)
	assert.Equal(t, 200, status)
	assert.Equal(t, msgUpdated, body["message"])

	_, body, _ = do(t, s, http.MethodGet, "/api/files/notes.txt", "")
	assert.Equal(t, "v2", body["content"])

	status, body, _ = do(t, s, http.MethodDelete, "/api/files/notes.txt", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, msgDeleted, body["message"])

	status, _, _ = do(t, s, http.MethodDelete, "/api/files/notes.txt", "")
	assert.Equal(t, 404, status)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, s) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/files")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
