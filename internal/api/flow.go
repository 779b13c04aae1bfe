package api

import (
	"net/http"

	"github.com/Folken2/ag-ui-research/internal/bus"
	"github.com/Folken2/ag-ui-research/internal/chatbot"
	"github.com/Folken2/ag-ui-research/internal/log"
	"github.com/Folken2/ag-ui-research/internal/stream"
)

// flowHandler serves the session observability and reset endpoints.
type flowHandler struct {
	adapter    *stream.Adapter
	newSession func() *chatbot.Session
	logger     log.Logger
}

// status serves GET /flow/status.
func (h *flowHandler) status(w http.ResponseWriter, _ *http.Request) {
	sess := h.adapter.Session()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_active":     sess.Active(),
		"conversation_count": sess.TurnCount(),
		"real_time_status":   h.adapter.Bus().Status(),
	})
}

// events serves GET /flow/events: a debug surface that drains and returns
// whatever the bus holds. Draining here steals events from an in-flight
// stream, so this is for poking at an idle server, not production use.
func (h *flowHandler) events(w http.ResponseWriter, _ *http.Request) {
	events := h.adapter.Bus().Drain()
	if events == nil {
		// Encode as an empty list, not null.
		events = []bus.StreamEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":         events,
		"session_status": h.adapter.Bus().Status(),
	})
}

// reset serves POST /flow/reset: fresh session state and a new bus epoch.
func (h *flowHandler) reset(w http.ResponseWriter, _ *http.Request) {
	h.adapter.ReplaceSession(h.newSession())
	h.logger.Info("session reset", "epoch", h.adapter.Bus().SessionID())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "reset",
		"message": "Flow has been reset",
	})
}
