package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one stage within a run.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// StageResult is one completed agent invocation recorded in the transcript.
// Insertion order is completion order, not stage order: the fix branch can
// append a second entry for the review stage out of band.
type StageResult struct {
	StageID string `json:"stageId"`

	// Output is the text payload candidate for the next stage.
	Output string `json:"output,omitempty"`

	// ReportID is the opaque artifact reference for downloadable reports.
	ReportID string `json:"reportId,omitempty"`

	// RepoURL is set when the agent created or rewrote a repository.
	RepoURL string `json:"repoUrl,omitempty"`

	// FixAvailable is only meaningful on the fixable stage's results.
	FixAvailable bool `json:"fixAvailable,omitempty"`

	// Fix marks results produced by the apply-fix side-branch.
	Fix bool `json:"fix,omitempty"`

	CompletedAt time.Time `json:"completedAt"`
}

// Run is the mutable record of a single pipeline execution. It lives for the
// session only; a process restart loses it. Run is owned exclusively by the
// Orchestrator, which serializes all access.
type Run struct {
	ID           string
	CurrentIndex int
	Statuses     map[string]Status
	Errors       map[string]string
	Transcript   []StageResult
	RepoURL      string
	LastOutput   string
	StartedAt    time.Time
}

// newRun creates a fresh Run with every stage Idle.
func newRun(c *Catalog) *Run {
	r := &Run{
		ID:        uuid.NewString(),
		Statuses:  make(map[string]Status, c.Len()),
		Errors:    make(map[string]string),
		StartedAt: time.Now().UTC(),
	}
	for _, s := range c.Stages() {
		r.Statuses[s.ID] = StatusIdle
	}
	return r
}

// forwardPayload selects the text forwarded to target: the Output of the most
// recent transcript entry that has either a non-empty Output or a ReportID.
// For artifact-input stages, a ReportID on that entry is forwarded instead of
// the raw text. Falls back to the last successful output when the transcript
// has no applicable entry.
func (r *Run) forwardPayload(target Stage) string {
	for i := len(r.Transcript) - 1; i >= 0; i-- {
		entry := r.Transcript[i]
		if entry.Output == "" && entry.ReportID == "" {
			continue
		}
		if target.ArtifactInput && entry.ReportID != "" {
			return entry.ReportID
		}
		return entry.Output
	}
	return r.LastOutput
}

// lastResultFor returns the most recent transcript entry for a stage id.
func (r *Run) lastResultFor(stageID string) (StageResult, bool) {
	for i := len(r.Transcript) - 1; i >= 0; i-- {
		if r.Transcript[i].StageID == stageID {
			return r.Transcript[i], true
		}
	}
	return StageResult{}, false
}

// StageState is one row of the read model, in catalog order.
type StageState struct {
	ID     string `json:"id"`
	Agent  string `json:"agent"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Snapshot is the immutable read model handed to presenters. It is a deep
// copy; mutating it cannot affect the run.
type Snapshot struct {
	RunID        string        `json:"runId"`
	CurrentIndex int           `json:"currentIndex"`
	Stages       []StageState  `json:"stages"`
	Transcript   []StageResult `json:"transcript"`
	RepoURL      string        `json:"repoUrl,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
}

// snapshot copies the run's externally visible state.
func (r *Run) snapshot(c *Catalog) Snapshot {
	s := Snapshot{
		RunID:        r.ID,
		CurrentIndex: r.CurrentIndex,
		Stages:       make([]StageState, 0, c.Len()),
		Transcript:   make([]StageResult, len(r.Transcript)),
		RepoURL:      r.RepoURL,
		StartedAt:    r.StartedAt,
	}
	for _, stage := range c.Stages() {
		s.Stages = append(s.Stages, StageState{
			ID:     stage.ID,
			Agent:  stage.Agent,
			Status: r.Statuses[stage.ID],
			Error:  r.Errors[stage.ID],
		})
	}
	copy(s.Transcript, r.Transcript)
	return s
}

// StatusOf returns the status recorded for a stage id, defaulting to Idle.
func (s Snapshot) StatusOf(stageID string) Status {
	for _, st := range s.Stages {
		if st.ID == stageID {
			return st.Status
		}
	}
	return StatusIdle
}
