package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/softlane/sdlcd/internal/agent"
	"github.com/softlane/sdlcd/internal/config"
	"github.com/softlane/sdlcd/internal/pipeline"
	"github.com/softlane/sdlcd/internal/stubagent"
)

// buildOrchestrator assembles the pipeline from config: agent endpoints (or
// the stub fleet when none are configured), the HTTP invoker, and the
// orchestrator itself. The returned cleanup stops everything.
func buildOrchestrator(ctx context.Context, cfg *config.Config, log *slog.Logger) (*pipeline.Orchestrator, func(), error) {
	catalog := pipeline.DefaultCatalog()

	var (
		dir   agent.Directory
		fleet *stubagent.Fleet
	)
	if cfg.UseStubAgents() {
		fleet = stubagent.NewFleet(catalog, log)
		if err := fleet.Start(ctx, cfg.StubBasePort); err != nil {
			return nil, nil, fmt.Errorf("start stub agents: %w", err)
		}
		dir = fleet.Directory()
	} else {
		dir = make(agent.Directory, len(cfg.Agents))
		for stageID, endpoint := range cfg.Agents {
			dir[stageID] = endpoint
		}
		for _, stage := range catalog.Stages() {
			if _, ok := dir[stage.ID]; !ok {
				return nil, nil, fmt.Errorf("config: no agent endpoint for stage %q", stage.ID)
			}
		}
	}

	invoker := agent.NewHTTPInvoker(dir, agent.WithTimeout(cfg.InvokeTimeout))
	orch := pipeline.New(catalog, invoker,
		pipeline.WithLogger(log),
		pipeline.WithAutoAdvance(cfg.AutoAdvance),
		pipeline.WithAdvanceDelay(cfg.AdvanceDelay),
		pipeline.WithContext(ctx),
	)

	cleanup := func() {
		orch.Close()
		if fleet != nil {
			fleet.Stop(context.Background())
		}
	}
	return orch, cleanup, nil
}
