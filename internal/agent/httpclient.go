package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Compile-time interface check.
var _ Invoker = (*HTTPInvoker)(nil)

// DefaultInvokeTimeout bounds a single agent run. The remote agents have no
// deadline of their own, so the client imposes one.
const DefaultInvokeTimeout = 120 * time.Second

// HTTPInvoker implements Invoker over JSON-RPC/HTTP against the agents
// registered in a Directory.
type HTTPInvoker struct {
	directory Directory
	http      *http.Client
	requestID atomic.Int64
}

// InvokerOption configures an HTTPInvoker.
type InvokerOption func(*HTTPInvoker)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) InvokerOption {
	return func(c *HTTPInvoker) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) InvokerOption {
	return func(c *HTTPInvoker) {
		c.http = hc
	}
}

// NewHTTPInvoker creates an invoker that resolves stage endpoints through
// directory.
func NewHTTPInvoker(directory Directory, opts ...InvokerOption) *HTTPInvoker {
	c := &HTTPInvoker{
		directory: directory,
		http: &http.Client{
			Timeout: DefaultInvokeTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke performs one blocking agent/run call for the given stage.
// Failures are reported as *InvocationError: transport problems and bad
// HTTP statuses as network errors, JSON-RPC errors as rejections, and
// exceeded deadlines as timeouts. The call is never retried here.
func (c *HTTPInvoker) Invoke(ctx context.Context, stageID string, p Payload) (*Outcome, error) {
	endpoint, err := c.directory.Endpoint(stageID)
	if err != nil {
		return nil, &InvocationError{Kind: ErrRejected, Stage: stageID, Message: err.Error()}
	}

	params, err := json.Marshal(RunRequest{Stage: stageID, Payload: p})
	if err != nil {
		return nil, fmt.Errorf("agent: marshal params: %w", err)
	}

	body, err := json.Marshal(JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      c.requestID.Add(1),
		Method:  MethodRun,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(stageID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &InvocationError{Kind: ErrNetwork, Stage: stageID, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &InvocationError{
			Kind:    ErrNetwork,
			Stage:   stageID,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, &InvocationError{Kind: ErrNetwork, Stage: stageID, Message: "decode response: " + err.Error()}
	}

	if rpcResp.Error != nil {
		return nil, &InvocationError{Kind: ErrRejected, Stage: stageID, Message: rpcResp.Error.Message}
	}

	var out Outcome
	if rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, &out); err != nil {
			return nil, &InvocationError{Kind: ErrNetwork, Stage: stageID, Message: "decode result: " + err.Error()}
		}
	}
	return &out, nil
}

// classifyTransportError maps a client-side HTTP failure to the error
// taxonomy. Deadline and timeout failures get their own kind; everything
// else is a network error.
func classifyTransportError(stageID string, err error) *InvocationError {
	kind := ErrNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = ErrTimeout
	}
	return &InvocationError{Kind: kind, Stage: stageID, Message: err.Error()}
}
