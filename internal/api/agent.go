package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Folken2/ag-ui-research/internal/log"
	"github.com/Folken2/ag-ui-research/internal/session"
	"github.com/Folken2/ag-ui-research/internal/stream"
)

// agentHandler serves the main streaming conversation endpoint.
type agentHandler struct {
	adapter *stream.Adapter
	logger  log.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type agentRequest struct {
	Messages []chatMessage `json:"messages"`
}

// handle serves POST /agent: validates the request, folds prior messages into
// history, then streams the turn as SSE frames ending with a [DONE] sentinel.
//
// Malformed requests (no messages, empty last content) are rejected with a
// structured error before any stream is opened.
func (h *agentHandler) handle(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "no_messages", "no messages")
		return
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Content == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "empty message")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	// A client that reconnects with its full message list seeds a fresh
	// server session; an established server history wins.
	h.adapter.Session().SeedHistory(foldHistory(req.Messages[:len(req.Messages)-1]))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for ev := range h.adapter.Process(r.Context(), last.Content) {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode stream event", "error", err, "type", ev.Type)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			h.logger.Debug("client write failed", "error", err)
			return
		}
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// foldHistory pairs consecutive user/assistant messages into history turns.
// Unpaired messages (a user message with no following assistant reply) are
// dropped.
func foldHistory(messages []chatMessage) []session.Turn {
	var turns []session.Turn
	var pendingInput string
	var hasPending bool

	for _, m := range messages {
		switch m.Role {
		case "user":
			pendingInput = m.Content
			hasPending = true
		case "assistant":
			if hasPending {
				turns = append(turns, session.Turn{
					Input:    pendingInput,
					Response: m.Content,
					Type:     session.TurnTypeChat,
				})
				hasPending = false
			}
		}
	}
	return turns
}
