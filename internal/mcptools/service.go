package mcptools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/softlane/sdlcd/internal/pipeline"
)

// WorkflowService handles MCP tool calls for the workflow server mode. It
// wraps an Orchestrator; a rejected operation is reported in the output's
// Status rather than as a tool error, so callers always get the run state
// back.
type WorkflowService struct {
	orch *pipeline.Orchestrator
}

// NewWorkflowService creates a WorkflowService around orch.
func NewWorkflowService(orch *pipeline.Orchestrator) *WorkflowService {
	return &WorkflowService{orch: orch}
}

// StartWorkflow begins a fresh pipeline run from requirement text.
func (s *WorkflowService) StartWorkflow(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input StartWorkflowInput,
) (*mcp.CallToolResult, WorkflowStateOutput, error) {
	if input.Text == "" {
		return nil, s.rejected("requirement text is required"), nil
	}
	err := s.orch.Start(pipeline.StartInput{Text: input.Text, RepoURL: input.RepoURL})
	return nil, s.outcome(err), nil
}

// ContinueWorkflow advances past a succeeded stage or retries a failed one.
func (s *WorkflowService) ContinueWorkflow(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ContinueWorkflowInput,
) (*mcp.CallToolResult, WorkflowStateOutput, error) {
	return nil, s.outcome(s.orch.Continue()), nil
}

// JumpToStage advances to the given stage index, optionally attaching the
// repository URL.
func (s *WorkflowService) JumpToStage(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input JumpToStageInput,
) (*mcp.CallToolResult, WorkflowStateOutput, error) {
	return nil, s.outcome(s.orch.JumpTo(input.Index, input.RepoURL)), nil
}

// ApplyFix runs the remediation side-branch for the latest scan report.
func (s *WorkflowService) ApplyFix(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ApplyFixInput,
) (*mcp.CallToolResult, WorkflowStateOutput, error) {
	return nil, s.outcome(s.orch.ApplyFix(input.RepoURL)), nil
}

// ResetWorkflow clears the run back to its initial state.
func (s *WorkflowService) ResetWorkflow(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ResetWorkflowInput,
) (*mcp.CallToolResult, WorkflowStateOutput, error) {
	s.orch.Reset()
	return nil, s.outcome(nil), nil
}

// GetWorkflowStatus returns the run state without changing it.
func (s *WorkflowService) GetWorkflowStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ GetWorkflowStatusInput,
) (*mcp.CallToolResult, WorkflowStateOutput, error) {
	return nil, s.outcome(nil), nil
}

func (s *WorkflowService) outcome(err error) WorkflowStateOutput {
	out := s.state()
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			out.Status = "rejected"
			out.Message = verr.Reason
			return out
		}
		out.Status = "rejected"
		out.Message = err.Error()
		return out
	}
	out.Status = "accepted"
	return out
}

func (s *WorkflowService) rejected(msg string) WorkflowStateOutput {
	out := s.state()
	out.Status = "rejected"
	out.Message = msg
	return out
}

func (s *WorkflowService) state() WorkflowStateOutput {
	snap := s.orch.Snapshot()

	out := WorkflowStateOutput{
		RunID:        snap.RunID,
		CurrentIndex: snap.CurrentIndex,
		Repository:   snap.RepoURL,
	}
	for i, st := range snap.Stages {
		if i == snap.CurrentIndex {
			out.CurrentStage = st.ID
		}
		out.Stages = append(out.Stages, StageStatus{
			Index:  i,
			ID:     st.ID,
			Status: string(st.Status),
			Error:  st.Error,
		})
	}
	for i := len(snap.Transcript) - 1; i >= 0; i-- {
		if snap.Transcript[i].Output != "" {
			out.LastOutput = snap.Transcript[i].Output
			break
		}
	}
	return out
}
