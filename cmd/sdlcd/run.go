package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/softlane/sdlcd/internal/config"
	"github.com/softlane/sdlcd/internal/pipeline"
	"github.com/softlane/sdlcd/internal/status"
)

func runCmd(flags *rootFlags) *cobra.Command {
	var (
		repoURL  string
		applyFix bool
	)

	cmd := &cobra.Command{
		Use:   "run <requirement text>",
		Short: "Drive one full pipeline run from the terminal",
		Long: `Starts a run from the given requirement text and follows it to the end,
printing each stage result. When no repository URL is configured the run
pauses after the design stage; pass --repo to resume automatically.`,
		Args: cobra.MinimumNArgs(1),
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

			events, cancel := orch.Events()
			defer cancel()

			text := strings.Join(args, " ")
			if err := orch.Start(pipeline.StartInput{Text: text, RepoURL: repoURL}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()

				case ev, ok := <-events:
					if !ok {
						return nil
					}
					switch ev.Type {
					case pipeline.EventStageSuccess:
						snap := orch.Snapshot()
						if len(snap.Transcript) > 0 {
							fmt.Fprintln(out, status.RenderResult(snap.Transcript[len(snap.Transcript)-1]))
						}
						if done, err := afterSuccess(orch, ev, applyFix); done || err != nil {
							if err == nil {
								fmt.Fprintln(out, status.Render(orch.Snapshot()))
							}
							return err
						}

					case pipeline.EventStageError:
						fmt.Fprintln(out, status.Render(orch.Snapshot()))
						return fmt.Errorf("stage %s failed: %s", ev.StageID, ev.Message)

					case pipeline.EventAdvanceHalted:
						if repoURL == "" {
							fmt.Fprintln(out, status.Render(orch.Snapshot()))
							return fmt.Errorf("run paused: %s (pass --repo to continue automatically)", ev.Message)
						}
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&repoURL, "repo", "", "repository URL supplied once the design stage completes")
	cmd.Flags().BoolVar(&applyFix, "fix", false, "apply available security fixes at the end of the run")
	return cmd
}

// afterSuccess decides what follows a stage success: finish at the terminal
// stage (optionally applying fixes first), or keep waiting for the
// auto-advance.
func afterSuccess(orch *pipeline.Orchestrator, ev pipeline.Event, applyFix bool) (bool, error) {
	catalog := orch.Catalog()
	if ev.Fix {
		return true, nil
	}
	if !catalog.IsTerminal(ev.Index) {
		return false, nil
	}

	if applyFix {
		if err := orch.ApplyFix(""); err != nil {
			var verr *pipeline.ValidationError
			if errors.As(err, &verr) {
				// Nothing to fix is a normal end of the run.
				return true, nil
			}
			return true, err
		}
		// A fix branch is now in flight; wait for its success event.
		return false, nil
	}
	return true, nil
}
