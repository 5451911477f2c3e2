package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/softlane/sdlcd/internal/agent"
)

// DefaultAdvanceDelay is how long the orchestrator waits after a stage
// succeeds before auto-advancing, so presenters can render the intermediate
// success state before the next network call starts.
const DefaultAdvanceDelay = 3 * time.Second

// Orchestrator drives a single pipeline run: it advances the stage pointer,
// forwards each stage's output to the next, tracks per-stage status, and
// implements the apply-fix side-branch. All state is guarded by a single
// mutex; at most one agent invocation is in flight at any time.
//
// Invocations run asynchronously and are tagged with the run's epoch.
// Reset bumps the epoch, so a late response from an abandoned call is
// discarded silently instead of mutating the new run.
type Orchestrator struct {
	mu       sync.Mutex
	catalog  *Catalog
	invoker  agent.Invoker
	log      *slog.Logger
	notifier *Notifier

	autoAdvance bool
	delay       time.Duration

	baseCtx   context.Context
	runCtx    context.Context
	cancelRun context.CancelFunc

	run      *Run
	seed     agent.Payload
	epoch    uint64
	inflight bool
	timer    *time.Timer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithAutoAdvance enables or disables automatic progression after success.
func WithAutoAdvance(enabled bool) Option {
	return func(o *Orchestrator) { o.autoAdvance = enabled }
}

// WithAdvanceDelay sets the pause before an automatic advance.
func WithAdvanceDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.delay = d }
}

// WithContext sets the base context invocations are derived from.
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) { o.baseCtx = ctx }
}

// New creates an Orchestrator for catalog with a fresh Idle run.
func New(catalog *Catalog, invoker agent.Invoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:     catalog,
		invoker:     invoker,
		log:         slog.Default(),
		notifier:    NewNotifier(),
		autoAdvance: true,
		delay:       DefaultAdvanceDelay,
		baseCtx:     context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.runCtx, o.cancelRun = context.WithCancel(o.baseCtx)
	o.run = newRun(catalog)
	return o
}

// StartInput seeds the first stage of a run.
type StartInput struct {
	Text     string
	FileName string
	FileBlob []byte
	RepoURL  string
}

// Start begins a fresh run by invoking stage 0 with the given input. It is
// rejected if the run has already started; use Reset to start over.
func (o *Orchestrator) Start(in StartInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inflight {
		return validationf("start", "an agent invocation is already in flight")
	}
	first := o.catalog.StageAt(0)
	if o.run.CurrentIndex != 0 || o.run.Statuses[first.ID] != StatusIdle {
		return validationf("start", "run already started; reset to start a new one")
	}

	if in.RepoURL != "" {
		o.run.RepoURL = in.RepoURL
	}
	o.seed = agent.Payload{
		Text:     in.Text,
		FileName: in.FileName,
		FileBlob: in.FileBlob,
	}

	payload := o.seed
	payload.RepoURL = o.run.RepoURL
	o.invokeLocked(0, first, payload, false)
	return nil
}

// Continue is the explicit user event for moving the run forward: it
// advances to the next stage after a success, or re-runs the current stage
// after a failure. A pending auto-advance timer is cancelled first.
func (o *Orchestrator) Continue() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopTimerLocked()
	if o.inflight {
		return validationf("continue", "an agent invocation is already in flight")
	}

	cur := o.run.CurrentIndex
	stage := o.catalog.StageAt(cur)

	switch o.run.Statuses[stage.ID] {
	case StatusError:
		// Manual retry of the failed stage.
		payload := o.retryPayloadLocked(stage)
		o.invokeLocked(cur, stage, payload, false)
		return nil
	case StatusSuccess:
		if o.catalog.IsTerminal(cur) {
			return validationf("continue", "pipeline already complete")
		}
		return o.advanceLocked(o.catalog.NextIndex(cur), "")
	case StatusIdle:
		return validationf("continue", "run not started")
	default:
		return validationf("continue", "stage %q is still running", stage.ID)
	}
}

// JumpTo advances to the stage at index, optionally supplying the repository
// handle in the same event. It only moves forward one stage at a time; its
// one intended use is the stage 0 to stage 1 transition once the user has
// provided the handle.
func (o *Orchestrator) JumpTo(index int, repoURL string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopTimerLocked()
	if o.inflight {
		return validationf("jump", "an agent invocation is already in flight")
	}
	if index < 0 || index >= o.catalog.Len() {
		return validationf("jump", "stage index %d out of range", index)
	}
	if index != o.run.CurrentIndex+1 {
		return validationf("jump", "cannot jump from stage %d to %d; stages advance one at a time", o.run.CurrentIndex, index)
	}
	cur := o.catalog.StageAt(o.run.CurrentIndex)
	if o.run.Statuses[cur.ID] != StatusSuccess {
		return validationf("jump", "stage %q has not completed successfully", cur.ID)
	}

	return o.advanceLocked(index, repoURL)
}

// ApplyFix resubmits the fixable stage's report artifact through the review
// stage with the apply-fix flag set. The result is appended to the
// transcript and recorded under the review stage, but the stage pointer
// never moves: the fix is a side effect of an already-reachable stage.
func (o *Orchestrator) ApplyFix(repoURL string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopTimerLocked()
	if o.inflight {
		return validationf("apply-fix", "an agent invocation is already in flight")
	}

	fixStage, ok := o.catalog.FixableStage()
	if !ok {
		return validationf("apply-fix", "pipeline has no fixable stage")
	}
	if o.run.Statuses[fixStage.ID] != StatusSuccess {
		return validationf("apply-fix", "stage %q has not completed successfully", fixStage.ID)
	}
	last, ok := o.run.lastResultFor(fixStage.ID)
	if !ok || !last.FixAvailable {
		return validationf("apply-fix", "stage %q reported no applicable fix", fixStage.ID)
	}
	if last.ReportID == "" {
		return validationf("apply-fix", "stage %q result carries no report artifact", fixStage.ID)
	}

	repo := repoURL
	if repo == "" {
		repo = o.run.RepoURL
	}
	if repo == "" {
		return validationf("apply-fix", "repository handle required to apply fixes")
	}

	review := o.catalog.StageAt(fixStage.Order + 1)
	o.invokeLocked(review.Order, review, agent.Payload{
		Text:     last.ReportID,
		RepoURL:  repo,
		ApplyFix: true,
	}, true)
	return nil
}

// Reset clears the run back to its initial state. The epoch is bumped and
// the run context cancelled, so a response from any abandoned invocation is
// discarded when it eventually lands.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.epoch++
	o.stopTimerLocked()
	o.inflight = false
	o.cancelRun()
	o.runCtx, o.cancelRun = context.WithCancel(o.baseCtx)
	o.run = newRun(o.catalog)
	o.seed = agent.Payload{}

	o.log.Info("run reset", "run", o.run.ID, "epoch", o.epoch)
	o.notifier.Emit(Event{Type: EventRunReset})
}

// Snapshot returns a deep copy of the run's externally visible state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run.snapshot(o.catalog)
}

// Catalog returns the pipeline's stage catalog.
func (o *Orchestrator) Catalog() *Catalog {
	return o.catalog
}

// Events subscribes to the run's event stream. Call the returned cancel
// func when done.
func (o *Orchestrator) Events() (<-chan Event, func()) {
	return o.notifier.Subscribe()
}

// Close releases the orchestrator's resources. Pending invocations are
// abandoned.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.epoch++
	o.stopTimerLocked()
	o.cancelRun()
	o.mu.Unlock()
	o.notifier.Close()
}

// --- internals (o.mu held unless noted) ---

// advanceLocked moves to target and invokes its agent. candidateRepo is a
// repository handle supplied with the triggering event; it is committed only
// once all preconditions pass, so a rejected operation changes nothing.
func (o *Orchestrator) advanceLocked(target int, candidateRepo string) error {
	stage := o.catalog.StageAt(target)

	repo := o.run.RepoURL
	if candidateRepo != "" {
		repo = candidateRepo
	}
	if o.repoRequiredBy(target) && repo == "" {
		return validationf("advance", "stage %q requires the repository handle; supply a repository URL first", stage.ID)
	}

	if candidateRepo != "" {
		o.run.RepoURL = candidateRepo
	}
	o.run.CurrentIndex = target

	o.invokeLocked(target, stage, agent.Payload{
		Text:    o.run.forwardPayload(stage),
		RepoURL: o.run.RepoURL,
	}, false)
	return nil
}

// repoRequiredBy reports whether any stage up to and including index needs
// the repository handle before index may run.
func (o *Orchestrator) repoRequiredBy(index int) bool {
	for i := 0; i <= index; i++ {
		if o.catalog.StageAt(i).RequiresRepoURL {
			return true
		}
	}
	return false
}

// retryPayloadLocked rebuilds the payload for re-running a failed stage.
// Stage 0 replays the seed input; later stages re-derive their context from
// the transcript.
func (o *Orchestrator) retryPayloadLocked(stage Stage) agent.Payload {
	if stage.Order == 0 {
		p := o.seed
		p.RepoURL = o.run.RepoURL
		return p
	}
	return agent.Payload{
		Text:    o.run.forwardPayload(stage),
		RepoURL: o.run.RepoURL,
	}
}

// invokeLocked marks the stage Running and dispatches the agent call on a
// fresh goroutine. The call is tagged with the current epoch.
func (o *Orchestrator) invokeLocked(index int, stage Stage, payload agent.Payload, fix bool) {
	o.run.Statuses[stage.ID] = StatusRunning
	delete(o.run.Errors, stage.ID)
	o.inflight = true

	o.log.Info("stage started", "run", o.run.ID, "stage", stage.ID, "index", index, "fix", fix)
	o.notifier.Emit(Event{Type: EventStageStarted, StageID: stage.ID, Index: index, Status: StatusRunning, Fix: fix})

	epoch := o.epoch
	ctx := o.runCtx
	go func() {
		out, err := o.invoker.Invoke(ctx, stage.ID, payload)
		o.complete(epoch, index, stage, out, err, fix)
	}()
}

// complete records an invocation's result. Results from a stale epoch are
// discarded without touching the run.
func (o *Orchestrator) complete(epoch uint64, index int, stage Stage, out *agent.Outcome, err error, fix bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch {
		o.log.Debug("discarding stale invocation result", "stage", stage.ID, "epoch", epoch)
		return
	}
	o.inflight = false

	if err != nil {
		msg := err.Error()
		if ie, ok := agent.AsInvocationError(err); ok {
			msg = ie.Message
		}
		o.run.Statuses[stage.ID] = StatusError
		o.run.Errors[stage.ID] = msg
		o.log.Warn("stage failed", "run", o.run.ID, "stage", stage.ID, "error", msg)
		o.notifier.Emit(Event{Type: EventStageError, StageID: stage.ID, Index: index, Status: StatusError, Message: msg, Fix: fix})
		return
	}

	o.run.Transcript = append(o.run.Transcript, StageResult{
		StageID:      stage.ID,
		Output:       out.Output,
		ReportID:     out.ReportID,
		RepoURL:      out.RepoURL,
		FixAvailable: out.FixAvailable,
		Fix:          fix,
		CompletedAt:  time.Now().UTC(),
	})
	o.run.Statuses[stage.ID] = StatusSuccess
	if out.Output != "" {
		o.run.LastOutput = out.Output
	}
	if out.RepoURL != "" && o.run.RepoURL == "" {
		o.run.RepoURL = out.RepoURL
	}

	o.log.Info("stage succeeded", "run", o.run.ID, "stage", stage.ID, "index", index, "fix", fix)
	o.notifier.Emit(Event{Type: EventStageSuccess, StageID: stage.ID, Index: index, Status: StatusSuccess, Message: out.Message, Fix: fix})

	if !fix && o.autoAdvance && !o.catalog.IsTerminal(index) {
		o.scheduleAdvanceLocked(o.catalog.NextIndex(index))
	}
}

// scheduleAdvanceLocked arms the auto-advance timer for target. The timer
// carries the scheduling epoch so a reset in the interim disarms it.
func (o *Orchestrator) scheduleAdvanceLocked(target int) {
	epoch := o.epoch
	o.timer = time.AfterFunc(o.delay, func() {
		o.autoAdvanceTo(epoch, target)
	})
}

func (o *Orchestrator) autoAdvanceTo(epoch uint64, target int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if epoch != o.epoch || o.inflight {
		return
	}
	if target != o.run.CurrentIndex+1 {
		return
	}

	if err := o.advanceLocked(target, ""); err != nil {
		// Typically the missing repo handle before the architecture
		// stage. The run waits for an explicit jump event.
		o.log.Warn("auto-advance halted", "run", o.run.ID, "target", target, "error", err)
		o.notifier.Emit(Event{Type: EventAdvanceHalted, Index: target, Message: err.Error()})
	}
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
