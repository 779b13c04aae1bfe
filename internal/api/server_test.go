package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Folken2/ag-ui-research/internal/bus"
	"github.com/Folken2/ag-ui-research/internal/chatbot"
	"github.com/Folken2/ag-ui-research/internal/intent"
	"github.com/Folken2/ag-ui-research/internal/session"
	"github.com/Folken2/ag-ui-research/internal/stream"
)

type stubClassifier struct {
	intent intent.Intent
}

func (s *stubClassifier) Classify(_ context.Context, message string, _ []session.Turn) (intent.Intent, string) {
	return s.intent, message
}

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, _ string) (*session.ResearchResult, error) {
	return &session.ResearchResult{Summary: "s"}, nil
}

type stubResponder struct {
	reply string
}

func (s *stubResponder) Reply(_ context.Context, _ []session.Turn, _ string) (string, error) {
	return s.reply, nil
}

func (s *stubResponder) Synthesize(_ context.Context, _ string, _ *session.ResearchResult) (string, error) {
	return s.reply, nil
}

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()

	newSession := func() *chatbot.Session {
		return chatbot.New(&stubClassifier{intent: intent.Chat}, stubRunner{}, &stubResponder{reply: "hi!"}, nil)
	}
	if cfg.Adapter == nil {
		b := bus.New(bus.DefaultCapacity, nil)
		cfg.Adapter = stream.NewAdapter(newSession(), b, nil, stream.WithPollInterval(time.Millisecond))
	}
	if cfg.NewSession == nil {
		cfg.NewSession = newSession
	}

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func TestAgent_RejectsMalformedRequests(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", "{", "bad_request"},
		{"no messages", `{"messages":[]}`, "no_messages"},
		{"empty content", `{"messages":[{"role":"user","content":""}]}`, "empty_message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json (no stream opened)", ct)
			}
			if !strings.Contains(rec.Body.String(), tt.code) {
				t.Errorf("body = %q, want error code %q", rec.Body.String(), tt.code)
			}
		})
	}
}

func TestAgent_StreamsChatTurn(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	body := `{"messages":[{"role":"user","content":"Hello"}]}`
	req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	out := rec.Body.String()
	for _, want := range []string{
		`"type":"RUN_STARTED"`,
		`"type":"TEXT_MESSAGE_DELTA"`,
		`"content":"hi!"`,
		`"type":"RUN_FINISHED"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stream missing %s:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "data: [DONE]\n\n") {
		t.Errorf("stream does not end with [DONE] sentinel:\n%s", out)
	}
}

func TestAgent_FoldsClientHistory(t *testing.T) {
	b := bus.New(bus.DefaultCapacity, nil)
	sess := chatbot.New(&stubClassifier{intent: intent.Chat}, stubRunner{}, &stubResponder{reply: "r"}, nil)
	adapter := stream.NewAdapter(sess, b, nil, stream.WithPollInterval(time.Millisecond))
	srv := newTestServer(t, ServerConfig{Adapter: adapter})

	body := `{"messages":[
		{"role":"user","content":"first question"},
		{"role":"assistant","content":"first answer"},
		{"role":"user","content":"second question"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// One seeded turn plus the turn just processed.
	if got := sess.TurnCount(); got != 2 {
		t.Errorf("TurnCount() = %d, want 2 (1 folded + 1 processed)", got)
	}
	if sess.History()[0].Input != "first question" {
		t.Errorf("folded turn = %+v", sess.History()[0])
	}
}

func TestFoldHistory(t *testing.T) {
	turns := foldHistory([]chatMessage{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "dangling"},
	})
	if len(turns) != 1 {
		t.Fatalf("foldHistory() = %d turns, want 1 (dangling user message dropped)", len(turns))
	}
	if turns[0].Input != "q1" || turns[0].Response != "a1" || turns[0].Type != session.TurnTypeChat {
		t.Errorf("turn = %+v", turns[0])
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestFlowStatusAndReset(t *testing.T) {
	b := bus.New(bus.DefaultCapacity, nil)
	sess := chatbot.New(&stubClassifier{intent: intent.Chat}, stubRunner{}, &stubResponder{reply: "r"}, nil)
	adapter := stream.NewAdapter(sess, b, nil, stream.WithPollInterval(time.Millisecond))
	srv := newTestServer(t, ServerConfig{Adapter: adapter})

	sess.SeedHistory([]session.Turn{{Input: "a", Response: "b", Type: session.TurnTypeChat}})
	epochBefore := b.SessionID()

	req := httptest.NewRequest(http.MethodGet, "/flow/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"conversation_count":1`) {
		t.Errorf("status body = %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/flow/reset", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if adapter.Session().TurnCount() != 0 {
		t.Error("reset kept old conversation history")
	}
	if b.SessionID() == epochBefore {
		t.Error("reset did not rotate the bus epoch")
	}
}

func TestFlowEvents_DrainsBus(t *testing.T) {
	b := bus.New(bus.DefaultCapacity, nil)
	sess := chatbot.New(&stubClassifier{intent: intent.Chat}, stubRunner{}, &stubResponder{reply: "r"}, nil)
	adapter := stream.NewAdapter(sess, b, nil)
	srv := newTestServer(t, ServerConfig{Adapter: adapter})

	b.Emit(bus.StreamEvent{Type: bus.KindToolStarted, Data: map[string]any{"tool": "web_search"}})

	req := httptest.NewRequest(http.MethodGet, "/flow/events", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "TOOL_STARTED") {
		t.Errorf("events body = %q", rec.Body.String())
	}
	if b.Status().EventsPending != 0 {
		t.Error("peek did not drain the bus")
	}
}

const testSecret = "0123456789abcdef0123456789abcdef"

func TestAuth_TokenFlow(t *testing.T) {
	srv := newTestServer(t, ServerConfig{
		AuthSecret: testSecret,
		Users:      map[string]string{"alice": HashPassword("correct horse")},
	})

	// Unauthenticated requests are rejected.
	req := httptest.NewRequest(http.MethodGet, "/flow/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	// Bad credentials are rejected.
	req = httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"username":"alice","password":"wrong"}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials status = %d, want 401", rec.Code)
	}

	// Unknown users are rejected, including with the empty password whose
	// digest matches the dummy comparison value.
	for _, body := range []string{
		`{"username":"mallory","password":"correct horse"}`,
		`{"username":"mallory","password":""}`,
	} {
		req = httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusBadRequest {
			t.Fatalf("unknown user %s status = %d, want rejection", body, rec.Code)
		}
	}

	// Good credentials yield a token.
	req = httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"username":"alice","password":"correct horse"}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body = %s", rec.Code, rec.Body.String())
	}

	token := SignToken([]byte(testSecret), "alice", time.Now().Add(time.Hour))
	req = httptest.NewRequest(http.MethodGet, "/flow/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}

	// Health stays open without a token.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health with auth enabled = %d, want 200", rec.Code)
	}
}

func TestVerifyToken(t *testing.T) {
	secret := []byte(testSecret)

	token := SignToken(secret, "alice", time.Now().Add(time.Hour))
	username, err := VerifyToken(secret, token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if username != "alice" {
		t.Errorf("username = %q, want alice", username)
	}

	if _, err := VerifyToken(secret, SignToken(secret, "alice", time.Now().Add(-time.Minute))); err != ErrTokenExpired {
		t.Errorf("expired token error = %v, want ErrTokenExpired", err)
	}
	if _, err := VerifyToken([]byte("another-secret-another-secret-xx"), token); err != ErrTokenInvalid {
		t.Errorf("wrong secret error = %v, want ErrTokenInvalid", err)
	}
	if _, err := VerifyToken(secret, "garbage"); err != ErrTokenInvalid {
		t.Errorf("garbage token error = %v, want ErrTokenInvalid", err)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, ServerConfig{RatePerSecond: 0.001, RateBurst: 1})

	req := httptest.NewRequest(http.MethodGet, "/flow/status", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}

	// A different IP has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/flow/status", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-ID")
	if got == "" {
		t.Fatal("requestIDMiddleware() did not set X-Request-ID header")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("X-Request-ID = %q, not a valid UUID", got)
	}

	// A valid incoming ID is reused.
	want := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", want)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != want {
		t.Errorf("X-Request-ID = %q, want %q", got, want)
	}
}

func TestCORSMiddleware(t *testing.T) {
	srv := newTestServer(t, ServerConfig{CORSOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/agent", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	// Unlisted origins get no CORS headers.
	req = httptest.NewRequest(http.MethodGet, "/flow/status", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unlisted origin = %q, want empty", got)
	}
}
