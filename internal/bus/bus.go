// Package bus provides the real-time event bus that bridges the research
// pipeline and the streaming HTTP layer.
//
// The pipeline runs blocking network calls on its own goroutine and emits
// progress events as it works. The streaming adapter drains the bus from the
// request side and forwards events to the client. The bus is the only object
// shared between the two sides, so all access goes through an internal mutex.
//
// Responsibilities: Bounded FIFO queue of StreamEvents, JSON-safety
// sanitization at the emit boundary, and epoch management (Reset rotates the
// session ID and discards everything still queued).
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Folken2/ag-ui-research/internal/log"
)

// Internal event kinds emitted by the research pipeline.
// The streaming adapter maps these onto the wire-level vocabulary.
const (
	KindCrewStarted    = "CREW_STARTED"
	KindCrewCompleted  = "CREW_COMPLETED"
	KindAgentStarted   = "AGENT_STARTED"
	KindAgentFinished  = "AGENT_FINISHED"
	KindAgentCompleted = "AGENT_COMPLETED"
	KindAgentError     = "AGENT_ERROR"
	KindTaskStarted    = "TASK_STARTED"
	KindTaskCompleted  = "TASK_COMPLETED"
	KindTaskFailed     = "TASK_FAILED"
	KindToolStarted    = "TOOL_STARTED"
	KindToolCompleted  = "TOOL_COMPLETED"
	KindToolError      = "TOOL_ERROR"
	KindLLMStarted     = "LLM_STARTED"
	KindLLMCompleted   = "LLM_COMPLETED"
	KindLLMError       = "LLM_ERROR"
	KindLLMStreamChunk = "LLM_STREAM_CHUNK"
)

// DefaultCapacity bounds the queue. When the queue is full the oldest pending
// event is dropped to admit the newest: a stale status line is worth less
// than the current one.
const DefaultCapacity = 256

// StreamEvent is one unit of progress information produced by the pipeline.
//
// Data must contain only JSON-safe values once the event leaves the bus;
// Emit enforces this by coercing anything else to its string representation.
type StreamEvent struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
	AgentID   string         `json:"agent_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`

	// Seq is a bus-assigned monotonic sequence number. Consumers use it as
	// the de-duplication key. Not serialized: the wire schema carries only
	// type/data/timestamp.
	Seq uint64 `json:"-"`
}

// Status is an observability snapshot of the bus.
type Status struct {
	SessionID     string `json:"session_id"`
	EventsPending int    `json:"events_pending"`
}

// Bus is a thread-safe bounded FIFO queue of StreamEvents with epoch
// management. The zero value is not usable; construct with New.
type Bus struct {
	mu        sync.Mutex
	queue     []StreamEvent
	capacity  int
	sessionID string
	nextSeq   uint64
	logger    log.Logger
}

// New creates a Bus with the given capacity (<= 0 uses DefaultCapacity) and a
// fresh session epoch.
func New(capacity int, logger log.Logger) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Bus{
		capacity:  capacity,
		sessionID: uuid.NewString(),
		logger:    logger,
	}
}

// Emit sanitizes the event's data, stamps it with the current epoch, a
// timestamp, and a sequence number, then enqueues it. Never blocks beyond the
// internal mutex: a full queue drops its oldest entry.
func (b *Bus) Emit(event StreamEvent) {
	event.Data = sanitizeMap(event.Data)
	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339Nano)
	}

	b.mu.Lock()
	event.SessionID = b.sessionID
	event.Seq = b.nextSeq
	b.nextSeq++
	if len(b.queue) >= b.capacity {
		b.queue = b.queue[1:]
	}
	b.queue = append(b.queue, event)
	b.mu.Unlock()

	// Observability only: surface the agent lifecycle in server logs.
	switch event.Type {
	case KindAgentStarted, KindAgentFinished:
		b.logger.Debug("pipeline event", "type", event.Type, "message", event.Data["message"])
	}
}

// Drain atomically removes and returns all queued events in enqueue order.
// Returns nil when nothing is pending; repeated calls without new emissions
// keep returning nil (no re-delivery).
func (b *Bus) Drain() []StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	events := b.queue
	b.queue = nil
	return events
}

// Reset rotates the session epoch and unconditionally discards everything
// still queued, drained or not. Events emitted before the reset are never
// observable afterwards.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionID = uuid.NewString()
	b.queue = nil
}

// SessionID returns the current epoch identifier.
func (b *Bus) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// Status returns the current epoch and pending-event count.
func (b *Bus) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		SessionID:     b.sessionID,
		EventsPending: len(b.queue),
	}
}
