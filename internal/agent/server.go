package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
)

// Handler executes agent runs on behalf of a Server.
type Handler interface {
	HandleRun(ctx context.Context, req RunRequest) (*Outcome, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, req RunRequest) (*Outcome, error)

// HandleRun calls f.
func (f HandlerFunc) HandleRun(ctx context.Context, req RunRequest) (*Outcome, error) {
	return f(ctx, req)
}

// Descriptor is the self-describing manifest an agent serves at its
// well-known URI.
type Descriptor struct {
	Name    string `json:"name"`
	Stage   string `json:"stage"`
	Version string `json:"version"`
}

// Server exposes one stage agent over the JSON-RPC/HTTP wire protocol.
type Server struct {
	descriptor Descriptor
	handler    Handler
	http       *http.Server
	addr       string
}

// NewServer creates a Server for the given agent.
func NewServer(descriptor Descriptor, handler Handler) *Server {
	return &Server{
		descriptor: descriptor,
		handler:    handler,
	}
}

// Start begins serving on addr in a background goroutine. Passing an addr
// with port 0 picks a free port; use Addr to discover it.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent.json", s.handleDescriptor)
	mux.HandleFunc("POST /", s.handleJSONRPC)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("agent: listen %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()
	s.http = &http.Server{Handler: mux}

	go s.http.Serve(ln)

	return nil
}

// Addr returns the bound listen address. Valid only after Start.
func (s *Server) Addr() string {
	return s.addr
}

// URL returns the agent's base endpoint URL. Valid only after Start.
func (s *Server) URL() string {
	return "http://" + s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.descriptor); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleJSONRPC decodes the envelope and dispatches agent/run calls.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}

	if req.Method != MethodRun {
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
		return
	}

	var params RunRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	out, err := s.handler.HandleRun(r.Context(), params)
	if err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInternal, err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, out)
}

func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}
	json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	})
}

func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	})
}
