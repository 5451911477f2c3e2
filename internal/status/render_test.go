package status

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/softlane/sdlcd/internal/pipeline"
)

func TestRender_MarksPositionAndStatuses(t *testing.T) {
	snap := pipeline.Snapshot{
		RunID:        "run-1",
		CurrentIndex: 1,
		RepoURL:      "https://github.com/acme/shop",
		Stages: []pipeline.StageState{
			{ID: pipeline.StageUIUX, Status: pipeline.StatusSuccess},
			{ID: pipeline.StageArchitecture, Status: pipeline.StatusError, Error: "connection refused"},
			{ID: pipeline.StageImpact, Status: pipeline.StatusIdle},
		},
	}

	got := Render(snap)

	assert.Contains(t, got, "run-1")
	assert.Contains(t, got, "https://github.com/acme/shop")
	assert.Contains(t, got, "connection refused")

	lines := strings.Split(got, "\n")
	var pointerLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "> ") {
			pointerLine = l
		}
	}
	assert.Contains(t, pointerLine, "architecture")
}

func TestRenderResult(t *testing.T) {
	got := RenderResult(pipeline.StageResult{
		StageID:  pipeline.StageSecurityScan,
		Output:   "2 findings",
		ReportID: "rep-1",
	})
	assert.Contains(t, got, "security-scan")
	assert.Contains(t, got, "2 findings")
	assert.Contains(t, got, "rep-1")

	got = RenderResult(pipeline.StageResult{StageID: pipeline.StageCodeReview, Fix: true})
	assert.Contains(t, got, "code-review (fix)")
}
