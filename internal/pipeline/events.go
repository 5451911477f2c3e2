package pipeline

// EventType classifies a pipeline event.
type EventType string

const (
	EventStageStarted  EventType = "stage-started"
	EventStageSuccess  EventType = "stage-succeeded"
	EventStageError    EventType = "stage-failed"
	EventAdvanceHalted EventType = "auto-advance-halted"
	EventRunReset      EventType = "run-reset"
)

// Event is emitted to presenters as the run progresses.
type Event struct {
	Type    EventType `json:"type"`
	StageID string    `json:"stageId,omitempty"`
	Index   int       `json:"index"`
	Status  Status    `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
	Fix     bool      `json:"fix,omitempty"`
}

// Notifier fans events out to subscribers over buffered channels. Emit never
// blocks; a subscriber that falls behind loses events rather than stalling
// the orchestrator.
type Notifier struct {
	subscribe   chan chan Event
	unsubscribe chan chan Event
	events      chan Event
	done        chan struct{}
}

// NewNotifier creates a Notifier and starts its dispatch loop.
func NewNotifier() *Notifier {
	n := &Notifier{
		subscribe:   make(chan chan Event),
		unsubscribe: make(chan chan Event),
		events:      make(chan Event, 64),
		done:        make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *Notifier) loop() {
	subs := make(map[chan Event]struct{})
	for {
		select {
		case ch := <-n.subscribe:
			subs[ch] = struct{}{}
		case ch := <-n.unsubscribe:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		case ev := <-n.events:
			for ch := range subs {
				select {
				case ch <- ev:
				default:
					// Slow subscriber: drop the event.
				}
			}
		case <-n.done:
			for ch := range subs {
				close(ch)
			}
			return
		}
	}
}

// Emit publishes an event without blocking. Events are dropped if the
// dispatch buffer is full or the notifier is closed.
func (n *Notifier) Emit(ev Event) {
	select {
	case n.events <- ev:
	case <-n.done:
	default:
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber is done; the channel is closed on cancel or
// when the notifier shuts down.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	select {
	case n.subscribe <- ch:
	case <-n.done:
		close(ch)
		return ch, func() {}
	}
	return ch, func() {
		select {
		case n.unsubscribe <- ch:
		case <-n.done:
		}
	}
}

// Close shuts the notifier down and closes all subscriber channels.
func (n *Notifier) Close() {
	close(n.done)
}
