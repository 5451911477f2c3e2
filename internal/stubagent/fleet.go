// Package stubagent provides an in-process fleet of canned stage agents.
// Each agent speaks the real wire protocol, so the orchestrator, HTTP API
// and MCP surfaces can run end to end without any external agent service.
package stubagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/softlane/sdlcd/internal/agent"
	"github.com/softlane/sdlcd/internal/pipeline"
)

// Version is reported in every stub agent's descriptor.
const Version = "0.1.0"

// Fleet runs one stub agent server per pipeline stage.
type Fleet struct {
	log     *slog.Logger
	catalog *pipeline.Catalog
	servers []*agent.Server
	dir     agent.Directory
}

// NewFleet creates a fleet for every stage in catalog.
func NewFleet(catalog *pipeline.Catalog, log *slog.Logger) *Fleet {
	if log == nil {
		log = slog.Default()
	}
	return &Fleet{
		log:     log,
		catalog: catalog,
		dir:     make(agent.Directory),
	}
}

// Start brings every stub agent up on a loopback port. Pass basePort 0 to
// let the kernel pick free ports.
func (f *Fleet) Start(ctx context.Context, basePort int) error {
	for i, stage := range f.catalog.Stages() {
		handler, ok := personas[stage.ID]
		if !ok {
			return fmt.Errorf("stubagent: no persona for stage %q", stage.ID)
		}

		srv := agent.NewServer(agent.Descriptor{
			Name:    stage.Agent,
			Stage:   stage.ID,
			Version: Version,
		}, handler)

		port := 0
		if basePort != 0 {
			port = basePort + i
		}
		if err := srv.Start(ctx, fmt.Sprintf("127.0.0.1:%d", port)); err != nil {
			f.stopAll(ctx)
			return fmt.Errorf("stubagent: start %s: %w", stage.ID, err)
		}

		f.servers = append(f.servers, srv)
		f.dir[stage.ID] = srv.URL()
		f.log.Info("stub agent up", "stage", stage.ID, "addr", srv.Addr())
	}
	return nil
}

// Directory returns the stage-to-endpoint map for the running fleet.
func (f *Fleet) Directory() agent.Directory {
	out := make(agent.Directory, len(f.dir))
	for k, v := range f.dir {
		out[k] = v
	}
	return out
}

// Stop shuts every agent down.
func (f *Fleet) Stop(ctx context.Context) error {
	return f.stopAll(ctx)
}

func (f *Fleet) stopAll(ctx context.Context) error {
	var firstErr error
	for _, srv := range f.servers {
		if err := srv.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.servers = nil
	return firstErr
}

// personas maps each stage id to its canned behavior. The outputs are
// deterministic apart from generated report ids, which keeps demo runs and
// end-to-end tests stable.
var personas = map[string]agent.Handler{
	pipeline.StageUIUX:         agent.HandlerFunc(handleUIUX),
	pipeline.StageArchitecture: documentPersona("architecture", "System architecture for %q: service layout, data flow, and interface contracts."),
	pipeline.StageImpact:       documentPersona("impact analysis", "Impact analysis for %q: affected modules, migration risk, and rollout order."),
	pipeline.StageCoding:       documentPersona("implementation", "Implementation notes for %q: generated code committed to the working branch."),
	pipeline.StageTesting:      documentPersona("test report", "Test report for %q: unit and integration suites executed, results attached."),
	pipeline.StageSecurityScan: agent.HandlerFunc(handleSecurityScan),
	pipeline.StageCodeReview:   agent.HandlerFunc(handleCodeReview),
}

// handleUIUX fabricates a repository handle alongside the design summary,
// the way the real design agent bootstraps a project repository.
func handleUIUX(_ context.Context, req agent.RunRequest) (*agent.Outcome, error) {
	topic := summarize(req.Text)
	return &agent.Outcome{
		Message: "UI/UX design generated",
		Output:  fmt.Sprintf("UI/UX design for %q: screen map, component inventory, and interaction flows.", topic),
		RepoURL: "https://github.com/sdlc-stub/" + slugify(topic),
	}, nil
}

func handleSecurityScan(_ context.Context, req agent.RunRequest) (*agent.Outcome, error) {
	return &agent.Outcome{
		Message:      "security scan complete",
		Output:       fmt.Sprintf("Security scan of %s: 2 medium findings, remediation available.", req.RepoURL),
		ReportID:     uuid.NewString(),
		FixAvailable: true,
	}, nil
}

func handleCodeReview(_ context.Context, req agent.RunRequest) (*agent.Outcome, error) {
	if req.ApplyFix {
		return &agent.Outcome{
			Message: "fixes applied",
			Output:  fmt.Sprintf("Applied remediations from report %s to %s.", req.Text, req.RepoURL),
		}, nil
	}
	return &agent.Outcome{
		Message:  "code review complete",
		Output:   "Code review passed: no blocking issues.",
		ReportID: uuid.NewString(),
	}, nil
}

// documentPersona builds a handler that emits a formatted document plus a
// fresh report artifact.
func documentPersona(kind, format string) agent.Handler {
	return agent.HandlerFunc(func(_ context.Context, req agent.RunRequest) (*agent.Outcome, error) {
		return &agent.Outcome{
			Message:  kind + " generated",
			Output:   fmt.Sprintf(format, summarize(req.Text)),
			ReportID: uuid.NewString(),
		}, nil
	})
}

// summarize trims long inputs down to a short label for output templates.
func summarize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "the project"
	}
	const max = 48
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "project"
	}
	return slug
}
