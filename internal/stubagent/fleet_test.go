package stubagent

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softlane/sdlcd/internal/agent"
	"github.com/softlane/sdlcd/internal/pipeline"
)

func startFleet(t *testing.T) *Fleet {
	t.Helper()
	f := NewFleet(pipeline.DefaultCatalog(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, f.Start(context.Background(), 0))
	t.Cleanup(func() { f.Stop(context.Background()) })
	return f
}

func TestFleet_ServesEveryStage(t *testing.T) {
	f := startFleet(t)

	dir := f.Directory()
	require.Len(t, dir, 7)
	for _, stage := range pipeline.DefaultCatalog().Stages() {
		assert.Contains(t, dir, stage.ID)
	}
}

func TestFleet_DesignAgentFabricatesRepo(t *testing.T) {
	f := startFleet(t)
	inv := agent.NewHTTPInvoker(f.Directory())

	out, err := inv.Invoke(context.Background(), pipeline.StageUIUX, agent.Payload{Text: "Online Book Store"})
	require.NoError(t, err)
	assert.Contains(t, out.Output, "Online Book Store")
	assert.Equal(t, "https://github.com/sdlc-stub/online-book-store", out.RepoURL)
}

func TestFleet_ScanOffersFix(t *testing.T) {
	f := startFleet(t)
	inv := agent.NewHTTPInvoker(f.Directory())

	out, err := inv.Invoke(context.Background(), pipeline.StageSecurityScan, agent.Payload{
		Text:    "report-ref",
		RepoURL: "https://github.com/acme/shop",
	})
	require.NoError(t, err)
	assert.True(t, out.FixAvailable)
	assert.NotEmpty(t, out.ReportID)
}

func TestFleet_ReviewAppliesFix(t *testing.T) {
	f := startFleet(t)
	inv := agent.NewHTTPInvoker(f.Directory())

	out, err := inv.Invoke(context.Background(), pipeline.StageCodeReview, agent.Payload{
		Text:     "scan-report-id",
		RepoURL:  "https://github.com/acme/shop",
		ApplyFix: true,
	})
	require.NoError(t, err)
	assert.Contains(t, out.Output, "scan-report-id")
	assert.Empty(t, out.ReportID)
}
