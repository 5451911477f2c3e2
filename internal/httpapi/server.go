// Package httpapi exposes the orchestrator to dashboard frontends over a
// small JSON/HTTP API with a Server-Sent Events stream for live updates.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/softlane/sdlcd/internal/export"
	"github.com/softlane/sdlcd/internal/pipeline"
)

// Server serves the workflow API for one orchestrator instance.
type Server struct {
	orch *pipeline.Orchestrator
	log  *slog.Logger
}

// NewServer creates a Server around orch.
func NewServer(orch *pipeline.Orchestrator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{orch: orch, log: log}
}

// Handler returns the API's http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/workflow/start", s.handleStart)
	mux.HandleFunc("POST /api/workflow/continue", s.handleContinue)
	mux.HandleFunc("POST /api/workflow/jump", s.handleJump)
	mux.HandleFunc("POST /api/workflow/fix", s.handleFix)
	mux.HandleFunc("POST /api/workflow/reset", s.handleReset)
	mux.HandleFunc("GET /api/workflow/state", s.handleState)
	mux.HandleFunc("GET /api/workflow/events", s.handleEvents)
	mux.HandleFunc("GET /api/workflow/export", s.handleExport)

	return mux
}

type startRequest struct {
	Text     string `json:"text"`
	RepoURL  string `json:"repoUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	// FileContent is base64 in the JSON wire form.
	FileContent []byte `json:"fileContent,omitempty"`
}

type jumpRequest struct {
	Index   int    `json:"index"`
	RepoURL string `json:"repoUrl,omitempty"`
}

type fixRequest struct {
	RepoURL string `json:"repoUrl,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Text == "" && len(req.FileContent) == 0 {
		writeError(w, http.StatusBadRequest, "either text or a file is required")
		return
	}

	err := s.orch.Start(pipeline.StartInput{
		Text:     req.Text,
		RepoURL:  req.RepoURL,
		FileName: req.FileName,
		FileBlob: req.FileContent,
	})
	s.respondOp(w, err)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	s.respondOp(w, s.orch.Continue())
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.respondOp(w, s.orch.JumpTo(req.Index, req.RepoURL))
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	s.respondOp(w, s.orch.ApplyFix(req.RepoURL))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.orch.Reset()
	writeJSON(w, http.StatusOK, s.orch.Snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Snapshot())
}

// handleEvents streams pipeline events over SSE until the client
// disconnects. The current snapshot is not replayed; clients fetch state
// first and then subscribe.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, cancel := s.orch.Events()
	defer cancel()

	sw := NewSSEWriter(w)
	sw.Init()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sw.WriteEvent(ev); err != nil {
				s.log.Debug("sse client gone", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := s.orch.Snapshot()

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, export.ExportWorkflow(snap))
	case "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(export.GenerateMermaid(snap, s.orch.Catalog())))
	default:
		writeError(w, http.StatusBadRequest, "unknown export format: "+format)
	}
}

// respondOp maps an operation result to a response: success returns the new
// snapshot, a validation failure returns 422 with the reason.
func (s *Server) respondOp(w http.ResponseWriter, err error) {
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		s.log.Error("workflow operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
