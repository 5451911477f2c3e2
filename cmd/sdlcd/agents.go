package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/softlane/sdlcd/internal/pipeline"
	"github.com/softlane/sdlcd/internal/stubagent"
)

func agentsCmd(flags *rootFlags) *cobra.Command {
	var basePort int

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Run the stub agent fleet standalone",
		Long: `Starts one stub agent per pipeline stage and prints their endpoints
in sdlcd.yml format, so a separately running daemon can be pointed at
them. Blocks until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(flags.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fleet := stubagent.NewFleet(pipeline.DefaultCatalog(), log)
			if err := fleet.Start(ctx, basePort); err != nil {
				return err
			}
			defer fleet.Stop(context.Background())

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "agents:")
			for _, stage := range pipeline.DefaultCatalog().Stages() {
				fmt.Fprintf(out, "  %s: %s\n", stage.ID, fleet.Directory()[stage.ID])
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().IntVar(&basePort, "base-port", 7001, "first port for the fleet (0 picks free ports)")
	return cmd
}
