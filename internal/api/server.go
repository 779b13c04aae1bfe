// Package api provides the HTTP surface: the streaming /agent endpoint, the
// /flow observability endpoints, token-based auth, and the middleware stack.
package api

import (
	"errors"
	"net/http"

	"github.com/Folken2/ag-ui-research/internal/chatbot"
	"github.com/Folken2/ag-ui-research/internal/config"
	"github.com/Folken2/ag-ui-research/internal/log"
	"github.com/Folken2/ag-ui-research/internal/stream"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        log.Logger
	Adapter       *stream.Adapter         // Required
	NewSession    func() *chatbot.Session // Required: factory for /flow/reset
	AuthSecret    string                  // Empty disables auth (dev mode)
	Users         map[string]string       // username -> hex sha256 password digest
	CORSOrigins   []string
	TrustProxy    bool
	RatePerSecond float64 // 0 = default 5
	RateBurst     int     // 0 = default 10
}

// Server is the HTTP server for the research assistant.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Adapter == nil {
		return nil, errors.New("stream adapter is required")
	}
	if cfg.NewSession == nil {
		return nil, errors.New("session factory is required")
	}
	if cfg.AuthSecret != "" && len(cfg.AuthSecret) < config.MinAuthSecretLength {
		return nil, errors.New("auth secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ah := &agentHandler{adapter: cfg.Adapter, logger: logger}
	fh := &flowHandler{adapter: cfg.Adapter, newSession: cfg.NewSession, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /agent", ah.handle)
	mux.HandleFunc("GET /flow/status", fh.status)
	mux.HandleFunc("GET /flow/events", fh.events)
	mux.HandleFunc("POST /flow/reset", fh.reset)

	if cfg.AuthSecret != "" {
		th := &authHandler{secret: []byte(cfg.AuthSecret), users: cfg.Users, logger: logger}
		mux.HandleFunc("POST /auth/token", th.issueToken)
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(perSecond, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	// RequestID must be before Logging so request_id is available to logs.
	// CORS must be before RateLimit so preflight OPTIONS gets CORS headers.
	var handler http.Handler = mux
	handler = authMiddleware([]byte(cfg.AuthSecret), logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
