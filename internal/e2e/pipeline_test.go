//go:build e2e

package e2e

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softlane/sdlcd/internal/agent"
	"github.com/softlane/sdlcd/internal/pipeline"
	"github.com/softlane/sdlcd/internal/stubagent"
)

// startStack brings up the stub fleet on real loopback HTTP servers and an
// orchestrator invoking them over the wire.
func startStack(t *testing.T, opts ...pipeline.Option) *pipeline.Orchestrator {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := pipeline.DefaultCatalog()

	fleet := stubagent.NewFleet(catalog, log)
	require.NoError(t, fleet.Start(context.Background(), 0))
	t.Cleanup(func() { fleet.Stop(context.Background()) })

	invoker := agent.NewHTTPInvoker(fleet.Directory(), agent.WithTimeout(10*time.Second))
	base := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithAdvanceDelay(10 * time.Millisecond),
	}
	orch := pipeline.New(catalog, invoker, append(base, opts...)...)
	t.Cleanup(orch.Close)
	return orch
}

func waitSnapshot(t *testing.T, orch *pipeline.Orchestrator, cond func(pipeline.Snapshot) bool) pipeline.Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(orch.Snapshot())
	}, 30*time.Second, 10*time.Millisecond)
	return orch.Snapshot()
}

// TestFullRun drives a run from requirement text to the review stage over
// real HTTP. The design agent fabricates the repository, so the run never
// pauses for the handle.
func TestFullRun(t *testing.T) {
	orch := startStack(t)

	require.NoError(t, orch.Start(pipeline.StartInput{Text: "Online Book Store"}))

	snap := waitSnapshot(t, orch, func(s pipeline.Snapshot) bool {
		return s.CurrentIndex == 6 && s.StatusOf(pipeline.StageCodeReview) == pipeline.StatusSuccess
	})

	for _, st := range snap.Stages {
		assert.Equal(t, pipeline.StatusSuccess, st.Status, "stage %s", st.ID)
	}
	assert.Len(t, snap.Transcript, 7)
	assert.Equal(t, "https://github.com/sdlc-stub/online-book-store", snap.RepoURL)
}

// TestFixBranch completes a run and then applies the scan's fix through the
// review agent. The pipeline position must not move.
func TestFixBranch(t *testing.T) {
	orch := startStack(t)

	require.NoError(t, orch.Start(pipeline.StartInput{Text: "Online Book Store"}))
	waitSnapshot(t, orch, func(s pipeline.Snapshot) bool {
		return s.CurrentIndex == 6 && s.StatusOf(pipeline.StageCodeReview) == pipeline.StatusSuccess
	})

	require.NoError(t, orch.ApplyFix(""))
	snap := waitSnapshot(t, orch, func(s pipeline.Snapshot) bool {
		return len(s.Transcript) == 8
	})

	fix := snap.Transcript[7]
	assert.True(t, fix.Fix)
	assert.Equal(t, pipeline.StageCodeReview, fix.StageID)
	assert.Contains(t, fix.Output, "Applied remediations")
	assert.Equal(t, 6, snap.CurrentIndex)
}

// TestUnreachableAgentHaltsRun points one stage at a dead endpoint and
// checks the run stops there with the transport error recorded, then
// recovers after a reset.
func TestUnreachableAgentHaltsRun(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := pipeline.DefaultCatalog()

	fleet := stubagent.NewFleet(catalog, log)
	require.NoError(t, fleet.Start(context.Background(), 0))
	t.Cleanup(func() { fleet.Stop(context.Background()) })

	dir := fleet.Directory()
	dir[pipeline.StageCoding] = "http://127.0.0.1:1"

	invoker := agent.NewHTTPInvoker(dir, agent.WithTimeout(2*time.Second))
	orch := pipeline.New(catalog, invoker,
		pipeline.WithLogger(log),
		pipeline.WithAdvanceDelay(10*time.Millisecond),
	)
	t.Cleanup(orch.Close)

	require.NoError(t, orch.Start(pipeline.StartInput{Text: "Online Book Store"}))

	snap := waitSnapshot(t, orch, func(s pipeline.Snapshot) bool {
		return s.StatusOf(pipeline.StageCoding) == pipeline.StatusError
	})
	assert.Equal(t, 3, snap.CurrentIndex)
	assert.Equal(t, pipeline.StatusIdle, snap.StatusOf(pipeline.StageTesting))

	orch.Reset()
	fresh := orch.Snapshot()
	assert.Empty(t, fresh.Transcript)
	for _, st := range fresh.Stages {
		assert.Equal(t, pipeline.StatusIdle, st.Status)
	}
}
