package pipeline

import "fmt"

// Stage is one step of the fixed SDLC pipeline. Stages are immutable, totally
// ordered data; all behavior lives in the Orchestrator.
type Stage struct {
	// ID is the stage's unique token, used as the agent routing key.
	ID string

	// Order is the stage's position in the fixed sequence (0-based).
	Order int

	// Agent is the human-readable name of the backing agent.
	Agent string

	// RequiresRepoURL marks the stage that may not run until the caller
	// has supplied a repository handle.
	RequiresRepoURL bool

	// Fixable marks the stage whose findings can be resubmitted through
	// the fix side-branch.
	Fixable bool

	// ArtifactInput marks a stage that consumes the previous report
	// artifact reference instead of raw text output when one exists.
	ArtifactInput bool
}

// Catalog is the static, ordered definition of the pipeline's stages.
type Catalog struct {
	stages []Stage
}

// Stage ids in pipeline order.
const (
	StageUIUX         = "uiux"
	StageArchitecture = "architecture"
	StageImpact       = "impact-analysis"
	StageCoding       = "coding"
	StageTesting      = "testing"
	StageSecurityScan = "security-scan"
	StageCodeReview   = "code-review"
)

// DefaultCatalog returns the seven-stage SDLC pipeline: requirements in,
// reviewed code out. The architecture stage is the first that needs the
// repository handle; the security scan's report feeds the fix branch; the
// two tail stages operate on report artifacts rather than raw text.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Stage{
		{ID: StageUIUX, Agent: "UI/UX Agent"},
		{ID: StageArchitecture, Agent: "Architecture Agent", RequiresRepoURL: true},
		{ID: StageImpact, Agent: "Impact Analysis Agent"},
		{ID: StageCoding, Agent: "Coding Agent"},
		{ID: StageTesting, Agent: "Testing Agent"},
		{ID: StageSecurityScan, Agent: "Security Scanning Agent", Fixable: true, ArtifactInput: true},
		{ID: StageCodeReview, Agent: "Code Review Agent", ArtifactInput: true},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog builds a Catalog from stages in order, assigning Order values,
// and validates the structural invariants: at least one stage, unique ids,
// exactly one repo-handle stage, and at most one fixable stage which must
// precede the terminal stage.
func NewCatalog(stages []Stage) (*Catalog, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline: catalog needs at least one stage")
	}

	seen := make(map[string]bool, len(stages))
	ordered := make([]Stage, len(stages))
	repoStages, fixable := 0, 0

	for i, s := range stages {
		if s.ID == "" {
			return nil, fmt.Errorf("pipeline: stage %d has no id", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("pipeline: duplicate stage id %q", s.ID)
		}
		seen[s.ID] = true

		s.Order = i
		ordered[i] = s

		if s.RequiresRepoURL {
			repoStages++
		}
		if s.Fixable {
			fixable++
			if i == len(stages)-1 {
				return nil, fmt.Errorf("pipeline: fixable stage %q must precede the terminal stage", s.ID)
			}
		}
	}

	if repoStages != 1 {
		return nil, fmt.Errorf("pipeline: exactly one stage must require the repo handle, got %d", repoStages)
	}
	if fixable > 1 {
		return nil, fmt.Errorf("pipeline: at most one stage may be fixable, got %d", fixable)
	}

	return &Catalog{stages: ordered}, nil
}

// Len returns the number of stages.
func (c *Catalog) Len() int {
	return len(c.stages)
}

// StageAt returns the stage at index. An out-of-range index is a programming
// error and panics.
func (c *Catalog) StageAt(index int) Stage {
	if index < 0 || index >= len(c.stages) {
		panic(fmt.Sprintf("pipeline: stage index %d out of range [0,%d)", index, len(c.stages)))
	}
	return c.stages[index]
}

// NextIndex returns the index following index. Calling it on the terminal
// stage is a programming error and panics; check IsTerminal first.
func (c *Catalog) NextIndex(index int) int {
	if c.IsTerminal(index) {
		panic(fmt.Sprintf("pipeline: stage index %d is terminal", index))
	}
	return index + 1
}

// IsTerminal reports whether index is the last stage.
func (c *Catalog) IsTerminal(index int) bool {
	if index < 0 || index >= len(c.stages) {
		panic(fmt.Sprintf("pipeline: stage index %d out of range [0,%d)", index, len(c.stages)))
	}
	return index == len(c.stages)-1
}

// FixableStage returns the stage whose output feeds the fix branch, if the
// catalog declares one.
func (c *Catalog) FixableStage() (Stage, bool) {
	for _, s := range c.stages {
		if s.Fixable {
			return s, true
		}
	}
	return Stage{}, false
}

// ByID looks a stage up by id.
func (c *Catalog) ByID(id string) (Stage, bool) {
	for _, s := range c.stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// Stages returns a copy of the ordered stage list.
func (c *Catalog) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}
