package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, handler Handler) *Server {
	t.Helper()
	srv := NewServer(Descriptor{Name: "Test Agent", Stage: "uiux", Version: "test"}, handler)
	require.NoError(t, srv.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv
}

func postRPC(t *testing.T, url string, req JSONRPCRequest) JSONRPCResponse {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	return rpcResp
}

func TestServer_HandleRun(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(ctx context.Context, req RunRequest) (*Outcome, error) {
		assert.Equal(t, "uiux", req.Stage)
		assert.Equal(t, "build a shop", req.Text)
		return &Outcome{Output: "ui spec", Message: "done"}, nil
	}))

	params, _ := json.Marshal(RunRequest{Stage: "uiux", Payload: Payload{Text: "build a shop"}})
	resp := postRPC(t, srv.URL(), JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      1,
		Method:  MethodRun,
		Params:  params,
	})

	require.Nil(t, resp.Error)
	var out Outcome
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.Equal(t, "ui spec", out.Output)
}

func TestServer_HandlerError(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(ctx context.Context, req RunRequest) (*Outcome, error) {
		return nil, errors.New("agent exploded")
	}))

	params, _ := json.Marshal(RunRequest{Stage: "uiux"})
	resp := postRPC(t, srv.URL(), JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      2,
		Method:  MethodRun,
		Params:  params,
	})

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternal, resp.Error.Code)
	assert.Equal(t, "agent exploded", resp.Error.Message)
}

func TestServer_MethodNotFound(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(ctx context.Context, req RunRequest) (*Outcome, error) {
		return &Outcome{}, nil
	}))

	resp := postRPC(t, srv.URL(), JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      3,
		Method:  "agent/unknown",
	})

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestServer_Descriptor(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(ctx context.Context, req RunRequest) (*Outcome, error) {
		return &Outcome{}, nil
	}))

	resp, err := http.Get(srv.URL() + "/.well-known/agent.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var d Descriptor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.Equal(t, "Test Agent", d.Name)
	assert.Equal(t, "uiux", d.Stage)
}

func TestServer_RoundTripThroughInvoker(t *testing.T) {
	srv := startTestServer(t, HandlerFunc(func(ctx context.Context, req RunRequest) (*Outcome, error) {
		return &Outcome{Output: "echo: " + req.Text, FixAvailable: req.Stage == "security-scan"}, nil
	}))

	inv := NewHTTPInvoker(Directory{"security-scan": srv.URL()})
	out, err := inv.Invoke(context.Background(), "security-scan", Payload{Text: "repo ref"})

	require.NoError(t, err)
	assert.Equal(t, "echo: repo ref", out.Output)
	assert.True(t, out.FixAvailable)
}
