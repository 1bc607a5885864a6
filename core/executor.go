package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/apigrade/schema"
	"go.uber.org/zap"
)

// DefaultCallTimeout bounds every call issued by an Executor.
const DefaultCallTimeout = 10 * time.Second

// Executor issues calls for catalog operations against one base URL.
// It never retries and never touches score state.
type Executor struct {
	catalog schema.Catalog
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLogger sets the logger used for call tracing.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// BaseURL formats the http base URL for a host and port.
func BaseURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// NewExecutor creates an executor for the catalog rooted at baseURL.
func NewExecutor(catalog schema.Catalog, baseURL string, opts ...ExecutorOption) (*Executor, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must look like http://host:port", baseURL)
	}
	e := &Executor{
		catalog: catalog,
		baseURL: strings.TrimSuffix(u.String(), "/"),
		client:  &http.Client{},
		timeout: DefaultCallTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Catalog returns the catalog the executor dispatches against.
func (e *Executor) Catalog() schema.Catalog {
	return e.catalog
}

// Execute issues the call for operationID with the given parameters.
// Application-level 4xx/5xx responses are returned as results, not errors.
func (e *Executor) Execute(ctx context.Context, operationID string, params schema.CallParams) (*schema.CallResult, error) {
	tmpl, ok := e.catalog.Lookup(operationID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, operationID)
	}

	path, err := expandPath(tmpl, params.Path)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	addValues(query, params.Query)

	var body io.Reader
	if tmpl.HasBody {
		if params.Body != nil {
			payload, err := json.Marshal(params.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode body for %s: %w", operationID, err)
			}
			body = bytes.NewReader(payload)
		}
	} else {
		addValues(query, params.Body)
	}

	target := e.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, tmpl.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", operationID, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := e.logger
	if runID := RunIDFromContext(ctx); runID != "" {
		logger = logger.With(zap.String("run_id", runID))
	}
	logger.Debug("calling operation",
		zap.String("operation", operationID),
		zap.String("method", tmpl.Method),
		zap.String("url", target))

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(operationID, tmpl.Method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(operationID, tmpl.Method, target, err)
	}

	result := &schema.CallResult{
		OperationID: operationID,
		Method:      tmpl.Method,
		URL:         target,
		StatusCode:  resp.StatusCode,
		Body:        decodeBody(raw),
		RawBody:     raw,
		Headers:     flattenHeaders(resp.Header),
		Duration:    time.Since(start),
	}

	logger.Debug("operation returned",
		zap.String("operation", operationID),
		zap.Int("status", result.StatusCode),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// expandPath substitutes every {name} placeholder of the template.
func expandPath(tmpl schema.OperationTemplate, values map[string]any) (string, error) {
	path := tmpl.PathPattern
	for _, name := range tmpl.Placeholders() {
		v, ok := values[name]
		if !ok || v == nil {
			return "", fmt.Errorf("%w: %q for %s", ErrMissingPathParameter, name, tmpl.ID)
		}
		s := fmt.Sprint(v)
		if s == "" {
			return "", fmt.Errorf("%w: %q for %s is empty", ErrMissingPathParameter, name, tmpl.ID)
		}
		path = strings.Replace(path, "{"+name+"}", url.PathEscape(s), 1)
	}
	return path, nil
}

// addValues appends map entries to the query in key order. Slices become repeated keys.
func addValues(q url.Values, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil:
			continue
		case []string:
			for _, item := range v {
				q.Add(k, item)
			}
		case []any:
			for _, item := range v {
				q.Add(k, fmt.Sprint(item))
			}
		default:
			q.Add(k, fmt.Sprint(v))
		}
	}
}

func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return string(raw)
	}
	return decoded
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func classifyTransportError(operationID, method, target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %s (%s)", ErrRequestTimeout, method, target, operationID)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s %s (%s)", ErrRequestTimeout, method, target, operationID)
	}
	return fmt.Errorf("%w: %s %s (%s): %v", ErrConnection, method, target, operationID, err)
}
