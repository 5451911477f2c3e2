package mcptools

// --- MCP tool types for the workflow server mode ---
// These tools are exposed when the binary runs as an MCP server, so agent
// frontends can drive the pipeline through structured calls instead of the
// HTTP API.

// StartWorkflowInput is the input for the start_workflow MCP tool.
type StartWorkflowInput struct {
	Text    string `json:"text" jsonschema:"product requirement text that seeds the pipeline"`
	RepoURL string `json:"repoUrl,omitempty" jsonschema:"repository URL, if one already exists"`
}

// ContinueWorkflowInput is the input for the continue_workflow MCP tool.
type ContinueWorkflowInput struct{}

// JumpToStageInput is the input for the jump_to_stage MCP tool.
type JumpToStageInput struct {
	Index   int    `json:"index" jsonschema:"stage index to advance to (must be the next stage)"`
	RepoURL string `json:"repoUrl,omitempty" jsonschema:"repository URL to attach to the run"`
}

// ApplyFixInput is the input for the apply_fix MCP tool.
type ApplyFixInput struct {
	RepoURL string `json:"repoUrl,omitempty" jsonschema:"repository URL to apply fixes to (default: the run's repository)"`
}

// ResetWorkflowInput is the input for the reset_workflow MCP tool.
type ResetWorkflowInput struct{}

// GetWorkflowStatusInput is the input for the get_workflow_status MCP tool.
type GetWorkflowStatusInput struct{}

// StageStatus is one stage row in a tool output.
type StageStatus struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// WorkflowStateOutput is the shared result shape of the workflow tools.
type WorkflowStateOutput struct {
	Status       string        `json:"status"` // "accepted" or "rejected"
	Message      string        `json:"message,omitempty"`
	RunID        string        `json:"runId"`
	CurrentIndex int           `json:"currentIndex"`
	CurrentStage string        `json:"currentStage"`
	Repository   string        `json:"repository,omitempty"`
	LastOutput   string        `json:"lastOutput,omitempty"`
	Stages       []StageStatus `json:"stages"`
}
