package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softlane/sdlcd/internal/agent"
	"github.com/softlane/sdlcd/internal/export"
	"github.com/softlane/sdlcd/internal/pipeline"
)

// cannedInvoker answers every stage with a fixed successful outcome.
type cannedInvoker struct{}

func (cannedInvoker) Invoke(_ context.Context, stageID string, _ agent.Payload) (*agent.Outcome, error) {
	return &agent.Outcome{Output: stageID + " done"}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *pipeline.Orchestrator) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.New(pipeline.DefaultCatalog(), cannedInvoker{},
		pipeline.WithLogger(log),
		pipeline.WithAutoAdvance(false),
	)
	t.Cleanup(orch.Close)

	ts := httptest.NewServer(NewServer(orch, log).Handler())
	t.Cleanup(ts.Close)
	return ts, orch
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeSnapshot(t *testing.T, resp *http.Response) pipeline.Snapshot {
	t.Helper()
	defer resp.Body.Close()
	var snap pipeline.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func waitStatus(t *testing.T, orch *pipeline.Orchestrator, stageID string, want pipeline.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return orch.Snapshot().StatusOf(stageID) == want
	}, 2*time.Second, 2*time.Millisecond)
}

func TestStart_ReturnsSnapshot(t *testing.T) {
	ts, orch := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/workflow/start", map[string]any{"text": "build a shop"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decodeSnapshot(t, resp)
	assert.Equal(t, 0, snap.CurrentIndex)
	waitStatus(t, orch, pipeline.StageUIUX, pipeline.StatusSuccess)
}

func TestStart_RequiresInput(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/workflow/start", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJump_ValidationFailureIs422(t *testing.T) {
	ts, orch := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/workflow/start", map[string]any{"text": "prd"})
	resp.Body.Close()
	waitStatus(t, orch, pipeline.StageUIUX, pipeline.StatusSuccess)

	// No repository handle supplied anywhere.
	resp = postJSON(t, ts.URL+"/api/workflow/jump", jumpRequest{Index: 1})
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "repository handle")
}

func TestJumpAndContinue_DriveThePipeline(t *testing.T) {
	ts, orch := newTestServer(t)

	postJSON(t, ts.URL+"/api/workflow/start", map[string]any{"text": "prd"}).Body.Close()
	waitStatus(t, orch, pipeline.StageUIUX, pipeline.StatusSuccess)

	resp := postJSON(t, ts.URL+"/api/workflow/jump", jumpRequest{Index: 1, RepoURL: "https://github.com/acme/shop"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	waitStatus(t, orch, pipeline.StageArchitecture, pipeline.StatusSuccess)

	resp = postJSON(t, ts.URL+"/api/workflow/continue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	waitStatus(t, orch, pipeline.StageImpact, pipeline.StatusSuccess)

	state, err := http.Get(ts.URL + "/api/workflow/state")
	require.NoError(t, err)
	snap := decodeSnapshot(t, state)
	assert.Equal(t, 2, snap.CurrentIndex)
	assert.Equal(t, "https://github.com/acme/shop", snap.RepoURL)
}

func TestReset_ReturnsFreshRun(t *testing.T) {
	ts, orch := newTestServer(t)

	postJSON(t, ts.URL+"/api/workflow/start", map[string]any{"text": "prd"}).Body.Close()
	waitStatus(t, orch, pipeline.StageUIUX, pipeline.StatusSuccess)
	old := orch.Snapshot().RunID

	resp := postJSON(t, ts.URL+"/api/workflow/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)

	assert.NotEqual(t, old, snap.RunID)
	assert.Empty(t, snap.Transcript)
}

func TestFix_RejectedBeforeScan(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/workflow/fix", fixRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestExport_JSONAndMermaid(t *testing.T) {
	ts, orch := newTestServer(t)

	postJSON(t, ts.URL+"/api/workflow/start", map[string]any{"text": "prd"}).Body.Close()
	waitStatus(t, orch, pipeline.StageUIUX, pipeline.StatusSuccess)

	resp, err := http.Get(ts.URL + "/api/workflow/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var we export.WorkflowExport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&we))
	assert.Equal(t, pipeline.StageUIUX, we.CurrentStage)
	assert.Len(t, we.Stages, 7)

	resp, err = http.Get(ts.URL + "/api/workflow/export?format=mermaid")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "graph LR"))

	resp, err = http.Get(ts.URL + "/api/workflow/export?format=pdf")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvents_StreamsSSE(t *testing.T) {
	ts, orch := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/workflow/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	postJSON(t, ts.URL+"/api/workflow/start", map[string]any{"text": "prd"}).Body.Close()
	waitStatus(t, orch, pipeline.StageUIUX, pipeline.StatusSuccess)

	scanner := bufio.NewScanner(resp.Body)
	var events []pipeline.Event
	for scanner.Scan() && len(events) < 2 {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev pipeline.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}

	require.Len(t, events, 2, "scanner error: %v", scanner.Err())
	assert.Equal(t, pipeline.EventStageStarted, events[0].Type)
	assert.Equal(t, pipeline.EventStageSuccess, events[1].Type)
	assert.Equal(t, pipeline.StageUIUX, events[0].StageID)
}
