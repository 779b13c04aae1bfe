// Package stream bridges the synchronous chat orchestrator and the
// client-facing event stream.
//
// One orchestrator turn is a blocking, multi-second call. The adapter runs it
// on a background goroutine and, while it executes, polls the event bus at a
// short fixed interval, forwarding drained pipeline events to the client in
// emission order. The poll-based bridge trades a small bounded latency for a
// much simpler loop than a wakeup channel would need.
package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Folken2/ag-ui-research/internal/bus"
	"github.com/Folken2/ag-ui-research/internal/chatbot"
	"github.com/Folken2/ag-ui-research/internal/intent"
	"github.com/Folken2/ag-ui-research/internal/log"
)

// defaultPollInterval bounds the extra latency a pipeline event can accrue
// before reaching the client.
const defaultPollInterval = 10 * time.Millisecond

// Adapter turns orchestrator turns into ordered, cancellable event streams.
type Adapter struct {
	// mu guards session: the reset endpoint swaps it while turns run.
	mu      sync.Mutex
	session *chatbot.Session

	events       *bus.Bus
	logger       log.Logger
	pollInterval time.Duration
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPollInterval overrides the bus poll interval (tests).
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) { a.pollInterval = d }
}

// NewAdapter creates an adapter bound to one session and one bus.
func NewAdapter(sess *chatbot.Session, events *bus.Bus, logger log.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &Adapter{
		session:      sess,
		events:       events,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Session returns the orchestrator session behind this adapter.
func (a *Adapter) Session() *chatbot.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Bus returns the event bus behind this adapter.
func (a *Adapter) Bus() *bus.Bus {
	return a.events
}

// ReplaceSession swaps in a fresh session and rotates the bus epoch. A turn
// already in flight keeps the session it started with; only subsequent turns
// see the replacement.
func (a *Adapter) ReplaceSession(sess *chatbot.Session) {
	a.mu.Lock()
	a.session = sess
	a.mu.Unlock()
	a.events.Reset()
}

type turnResult struct {
	outcome  *chatbot.Outcome
	err      error
	panicked bool
}

// Process runs one turn and returns the channel of events to forward to the
// client. The channel is closed after the final RUN_FINISHED frame.
//
// Cancelling ctx (client disconnect) cancels the background orchestrator call
// and stops the stream; events are never delivered to a dead context.
func (a *Adapter) Process(ctx context.Context, message string) <-chan Event {
	out := make(chan Event, 16)
	go a.process(ctx, message, out)
	return out
}

func (a *Adapter) process(ctx context.Context, message string, out chan<- Event) {
	defer close(out)

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Instant feedback before any work begins.
	if !send(newEvent(TypeRunStarted, map[string]any{
		"status":  "processing",
		"message": "Processing: " + message,
	})) {
		return
	}

	// Rotate the epoch so leftovers from a prior, possibly still-draining
	// turn can never leak into this stream.
	a.events.Reset()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Pin the session for the whole turn; a concurrent reset must not swap
	// it out from under the background goroutine.
	sess := a.Session()

	resultCh := make(chan turnResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- turnResult{err: fmt.Errorf("internal error: %v", r), panicked: true}
			}
		}()
		outcome, err := sess.ProcessMessage(runCtx, message)
		resultCh <- turnResult{outcome: outcome, err: err}
	}()

	seen := make(map[uint64]bool)
	flush := func() bool {
		for _, ev := range a.events.Drain() {
			if seen[ev.Seq] {
				continue
			}
			seen[ev.Seq] = true
			if !send(translate(ev)) {
				return false
			}
		}
		return true
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	var result turnResult
	for done := false; !done; {
		select {
		case result = <-resultCh:
			done = true
		case <-ticker.C:
			if !flush() {
				return
			}
		case <-ctx.Done():
			// Client went away: cancel the orchestrator run and stop. The
			// background goroutine delivers into the buffered channel.
			a.logger.Debug("client disconnected, cancelling turn")
			return
		}
	}

	// Final pass: flush events produced between the last poll and task
	// completion, so the tail of the sequence is never lost.
	if !flush() {
		return
	}

	switch {
	case result.panicked:
		a.logger.Error("turn panicked", "error", result.err)
		send(newEvent(TypeTextMessageDelta, map[string]any{
			"content": fmt.Sprintf("❌ Unexpected error: %v", result.err),
		}))
	case result.err != nil:
		a.logger.Warn("turn failed", "error", result.err)
		send(newEvent(TypeTextMessageDelta, map[string]any{
			"content": fmt.Sprintf("❌ Error: %v", result.err),
		}))
	default:
		a.sendOutcome(send, result.outcome)
	}

	// Unconditional termination marker; the client stops listening on it.
	send(newEvent(TypeRunFinished, map[string]any{"status": "complete"}))
}

func (a *Adapter) sendOutcome(send func(Event) bool, outcome *chatbot.Outcome) {
	if outcome.Intent != intent.Search {
		send(newEvent(TypeTextMessageDelta, map[string]any{"content": outcome.Response}))
		return
	}

	if !send(newEvent(TypeTextMessageDelta, map[string]any{
		"content": formatResearchContent(outcome.Response),
	})) {
		return
	}
	if len(outcome.Sources) > 0 {
		send(newEvent(TypeSourcesUpdate, map[string]any{
			"sources": formatSources(outcome.Sources),
		}))
	}
}
