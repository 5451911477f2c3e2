package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/softlane/sdlcd/internal/config"
	"github.com/softlane/sdlcd/internal/mcptools"
)

func mcpCmd(flags *rootFlags) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the workflow MCP server",
		Long: `Exposes the pipeline as MCP tools (start_workflow, continue_workflow,
jump_to_stage, apply_fix, reset_workflow, get_workflow_status).

By default the server speaks MCP over stdio; pass --http to serve the
streamable HTTP transport instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(flags.LogLevel)

			cfg, err := config.Load(flags.ConfigDir)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orch, cleanup, err := buildOrchestrator(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			server := mcptools.NewWorkflowMCPServer(mcptools.NewWorkflowService(orch))
			if httpAddr != "" {
				log.Info("mcp server listening", "addr", httpAddr)
				return mcptools.RunMCPServerHTTP(ctx, server, httpAddr)
			}
			return mcptools.RunMCPServerStdio(ctx, server)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve MCP over HTTP on this address instead of stdio")
	return cmd
}
