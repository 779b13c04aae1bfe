package stream

import (
	"time"

	"github.com/Folken2/ag-ui-research/internal/bus"
)

// Wire-level event types. This vocabulary is the stable contract with the
// frontend; internal pipeline kinds are translated into it before leaving the
// server.
const (
	TypeRunStarted       = "RUN_STARTED"
	TypeRunFinished      = "RUN_FINISHED"
	TypeTextMessageDelta = "TEXT_MESSAGE_DELTA"
	TypeSourcesUpdate    = "SOURCES_UPDATE"
	TypeAgentStatus      = "AGENT_STATUS"
	TypeAgentError       = "AGENT_ERROR"
	TypeTaskError        = "TASK_ERROR"
	TypeToolUsage        = "TOOL_USAGE"
	TypeToolError        = "TOOL_ERROR"
	TypeExecutionStatus  = "EXECUTION_STATUS"
)

// Event is one frame of the client-facing stream.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// newEvent creates an adapter-originated frame stamped with the current time.
func newEvent(eventType string, data map[string]any) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
}

// wireTypes maps internal pipeline kinds to the wire vocabulary. Kinds not
// listed here fall back to EXECUTION_STATUS.
var wireTypes = map[string]string{
	bus.KindAgentStarted:   TypeAgentStatus,
	bus.KindAgentFinished:  TypeAgentStatus,
	bus.KindAgentCompleted: TypeAgentStatus,
	bus.KindAgentError:     TypeAgentError,
	bus.KindTaskFailed:     TypeTaskError,
	bus.KindToolStarted:    TypeToolUsage,
	bus.KindToolCompleted:  TypeToolUsage,
	bus.KindToolError:      TypeToolError,
}

// translate converts one drained pipeline event to its wire form. Token
// chunks become content deltas; everything else keeps its data payload and
// original timestamp.
func translate(ev bus.StreamEvent) Event {
	if ev.Type == bus.KindLLMStreamChunk {
		return Event{
			Type:      TypeTextMessageDelta,
			Data:      map[string]any{"content": ev.Data["chunk"]},
			Timestamp: ev.Timestamp,
		}
	}

	wireType, ok := wireTypes[ev.Type]
	if !ok {
		wireType = TypeExecutionStatus
	}
	return Event{
		Type:      wireType,
		Data:      ev.Data,
		Timestamp: ev.Timestamp,
	}
}
