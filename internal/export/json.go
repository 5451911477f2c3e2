// Package export turns a pipeline run into shareable artifacts: a JSON
// document for tooling and a Mermaid diagram for docs and dashboards.
package export

import (
	"time"

	"github.com/softlane/sdlcd/internal/pipeline"
)

// WorkflowExport is the top-level JSON export structure.
type WorkflowExport struct {
	RunID        string         `json:"runId"`
	ExportedAt   string         `json:"exportedAt"`
	StartedAt    string         `json:"startedAt"`
	Repository   string         `json:"githubRepository,omitempty"`
	CurrentStage string         `json:"currentStage"`
	Stages       []StageExport  `json:"stages"`
	Results      []ResultExport `json:"results,omitempty"`
}

// StageExport describes one pipeline stage and its recorded status.
type StageExport struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Agent  string `json:"agent"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ResultExport is one transcript entry.
type ResultExport struct {
	Stage       string `json:"stage"`
	Output      string `json:"output,omitempty"`
	ReportID    string `json:"reportId,omitempty"`
	Fix         bool   `json:"fix,omitempty"`
	CompletedAt string `json:"completedAt"`
}

// ExportWorkflow builds a WorkflowExport from a run snapshot.
func ExportWorkflow(snap pipeline.Snapshot) *WorkflowExport {
	out := &WorkflowExport{
		RunID:      snap.RunID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		StartedAt:  snap.StartedAt.UTC().Format(time.RFC3339),
		Repository: snap.RepoURL,
	}

	for i, st := range snap.Stages {
		if i == snap.CurrentIndex {
			out.CurrentStage = st.ID
		}
		out.Stages = append(out.Stages, StageExport{
			Index:  i,
			ID:     st.ID,
			Agent:  st.Agent,
			Status: string(st.Status),
			Error:  st.Error,
		})
	}

	for _, r := range snap.Transcript {
		out.Results = append(out.Results, ResultExport{
			Stage:       r.StageID,
			Output:      r.Output,
			ReportID:    r.ReportID,
			Fix:         r.Fix,
			CompletedAt: r.CompletedAt.UTC().Format(time.RFC3339),
		})
	}

	return out
}
