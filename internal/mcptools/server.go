package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewWorkflowMCPServer creates an MCP server with the 6 workflow tools
// registered.
func NewWorkflowMCPServer(svc *WorkflowService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sdlcd",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_workflow",
		Description: "Start a fresh SDLC pipeline run from product requirement text. The design stage runs immediately; later stages follow automatically.",
	}, svc.StartWorkflow)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "continue_workflow",
		Description: "Advance to the next stage after a success, or retry the current stage after a failure.",
	}, svc.ContinueWorkflow)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "jump_to_stage",
		Description: "Advance to the given stage index, optionally supplying the repository URL. Stages only move forward one at a time.",
	}, svc.JumpToStage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_fix",
		Description: "Apply the remediations from the latest security scan report. Runs the review agent as a side branch; the pipeline position does not change.",
	}, svc.ApplyFix)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reset_workflow",
		Description: "Discard the current run and return every stage to idle. In-flight agent calls are abandoned.",
	}, svc.ResetWorkflow)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_workflow_status",
		Description: "Get the current run state: stage statuses, pipeline position, repository, and the latest stage output.",
	}, svc.GetWorkflowStatus)

	return server
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking until
// stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunMCPServerHTTP starts an HTTP server exposing the workflow MCP tools.
func RunMCPServerHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
