package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/pharmacrawl/internal/model"
	"github.com/nao1215/pharmacrawl/internal/workflow"
	"golang.org/x/net/proxy"
)

// Defaults for the HTTP engine client.
const (
	// DefaultTimeout bounds a single engine invocation. Workflows chain
	// content retrieval and language-model calls, so this is generous.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxBodySize caps the engine response body.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultUserAgent identifies pharmacrawl to the engine.
	DefaultUserAgent = "pharmacrawl"

	// statusBodySnippet is how much of an error body is kept in StatusError.
	statusBodySnippet = 512
)

// runRequest is the JSON body sent to the workflow runner.
type runRequest struct {
	Workflow string            `json:"workflow"`
	Inputs   map[string]string `json:"inputs"`
	Params   model.Params      `json:"params,omitempty"`
}

// HTTPEngine runs workflows on a remote workflow runner.
//
// Each invocation is a single POST of {workflow, inputs, params} to the
// endpoint; the response is a JSON object of workflow node outputs. The
// workflow text is sent unmodified and the credentials travel only in the
// inputs of the request body. Request logging names the workflow and its
// params, never the inputs.
//
// A non-2xx status becomes a *StatusError carrying a truncated body. A body
// larger than the response limit, or one that is not exactly one JSON
// object, is rejected before any field is read.
//
// Design decision: We talk to an external runner over HTTP rather than
// evaluating workflows in-process because:
// 1. Workflow agents call hosted models and fetchers that live in the runner
// 2. The orchestrator stays testable against an httptest server
// 3. A SOCKS5 proxy can be put in front of every call without touching agents
type HTTPEngine struct {
	// endpoint is the workflow runner URL.
	endpoint string

	// client performs the requests.
	client *http.Client

	// timeout is applied when the engine builds its own client.
	timeout time.Duration

	// proxyAddress routes requests through a SOCKS5 proxy when set.
	proxyAddress string

	// userAgent is sent with each request.
	userAgent string

	// maxBodySize caps the response body.
	maxBodySize int64

	// logger for structured logging. Credentials are never passed to it.
	logger *slog.Logger
}

// HTTPOption configures an HTTPEngine.
type HTTPOption func(*HTTPEngine)

// WithHTTPClient uses a caller-supplied client. Timeout and proxy options
// are ignored when a client is supplied.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPEngine) {
		e.client = client
	}
}

// WithTimeout sets the per-invocation timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(e *HTTPEngine) {
		e.timeout = d
	}
}

// WithProxy routes engine traffic through the SOCKS5 proxy at host:port.
func WithProxy(address string) HTTPOption {
	return func(e *HTTPEngine) {
		e.proxyAddress = address
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) HTTPOption {
	return func(e *HTTPEngine) {
		e.userAgent = userAgent
	}
}

// WithMaxBodySize caps the response body size in bytes.
func WithMaxBodySize(size int64) HTTPOption {
	return func(e *HTTPEngine) {
		if size > 0 {
			e.maxBodySize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(e *HTTPEngine) {
		e.logger = logger
	}
}

// NewHTTPEngine creates an engine client for the given endpoint.
// It validates the endpoint and proxy address but does not contact either.
func NewHTTPEngine(endpoint string, opts ...HTTPOption) (*HTTPEngine, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidEndpoint
	}

	e := &HTTPEngine{
		endpoint:    endpoint,
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		client, err := e.newClient()
		if err != nil {
			return nil, err
		}
		e.client = client
	}

	return e, nil
}

// newClient builds the default HTTP client, optionally dialing through SOCKS5.
func (e *HTTPEngine) newClient() (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport

	if e.proxyAddress != "" {
		if !isValidProxyAddress(e.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", e.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
		}
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return contextDialer.DialContext(ctx, network, addr)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   e.timeout,
	}, nil
}

// Endpoint returns the workflow runner URL.
func (e *HTTPEngine) Endpoint() string {
	return e.endpoint
}

// Discover runs a discovery workflow.
func (e *HTTPEngine) Discover(ctx context.Context, wf workflow.Definition, creds model.Credentials) (Output, error) {
	return e.run(ctx, wf, creds, nil)
}

// Extract runs a per-target workflow with params.
func (e *HTTPEngine) Extract(ctx context.Context, wf workflow.Definition, creds model.Credentials, params model.Params) (Output, error) {
	return e.run(ctx, wf, creds, params)
}

// run performs one workflow invocation.
func (e *HTTPEngine) run(ctx context.Context, wf workflow.Definition, creds model.Credentials, params model.Params) (Output, error) {
	body, err := json.Marshal(runRequest{
		Workflow: wf.Text,
		Inputs:   creds.Inputs(),
		Params:   params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode engine request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	e.logger.Debug("engine request",
		"workflow", wf.Name,
		"endpoint", e.endpoint,
		"params", map[string]string(params),
	)

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read engine response: %w", err)
	}
	if int64(len(data)) > e.maxBodySize {
		return nil, ErrResponseTooLarge
	}

	e.logger.Debug("engine response",
		"workflow", wf.Name,
		"status", resp.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(data)), statusBodySnippet),
		}
	}

	return decodeOutput(data)
}

// decodeOutput decodes a JSON object, keeping numbers exact.
func decodeOutput(data []byte) (Output, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if out == nil {
		return nil, ErrInvalidResponse
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidResponse)
	}
	return Output(out), nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// truncate shortens s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
