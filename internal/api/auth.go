package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Folken2/ag-ui-research/internal/log"
)

var (
	// ErrTokenInvalid is returned when a bearer token fails validation.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired is returned when a bearer token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// TokenTTL is how long an issued bearer token stays valid.
const TokenTTL = 24 * time.Hour

// SignToken creates an HMAC-SHA256 signed bearer token.
// Format: "username:expiryUnix:signature" with a URL-safe base64 signature.
func SignToken(secret []byte, username string, expiresAt time.Time) string {
	payload := fmt.Sprintf("%s:%d", username, expiresAt.Unix())
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(payload))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))
	return payload + ":" + signature
}

// VerifyToken validates a bearer token and returns the embedded username.
func VerifyToken(secret []byte, token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", ErrTokenInvalid
	}
	username, expiryRaw, sigRaw := parts[0], parts[1], parts[2]

	h := hmac.New(sha256.New, secret)
	fmt.Fprintf(h, "%s:%s", username, expiryRaw)
	expectedSig := h.Sum(nil)

	actualSig, err := base64.URLEncoding.DecodeString(sigRaw)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if !hmac.Equal(expectedSig, actualSig) {
		return "", ErrTokenInvalid
	}

	expiry, err := strconv.ParseInt(expiryRaw, 10, 64)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if time.Now().Unix() > expiry {
		return "", ErrTokenExpired
	}

	return username, nil
}

// HashPassword returns the hex-encoded SHA-256 digest used for configured
// user credentials.
func HashPassword(password string) string {
	digest := sha256.Sum256([]byte(password))
	return hex.EncodeToString(digest[:])
}

// dummyDigest is a valid-length digest compared against when the username is
// unknown, so login rejection time does not reveal whether the user exists.
var dummyDigest = HashPassword("")

// authHandler issues bearer tokens for configured users.
type authHandler struct {
	secret []byte
	users  map[string]string // username -> hex sha256 password digest
	logger log.Logger
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// issueToken handles POST /auth/token.
func (h *authHandler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "username and password are required")
		return
	}

	storedDigest, ok := h.users[req.Username]
	if !ok {
		// Burn a same-length comparison so unknown usernames cost the same
		// as wrong passwords.
		storedDigest = dummyDigest
	}
	suppliedDigest := HashPassword(req.Password)
	match := subtle.ConstantTimeCompare([]byte(storedDigest), []byte(suppliedDigest)) == 1
	if !ok || !match {
		h.logger.Warn("failed login attempt", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	expiresAt := time.Now().Add(TokenTTL)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: SignToken(h.secret, req.Username, expiresAt),
		TokenType:   "bearer",
		ExpiresIn:   int64(TokenTTL.Seconds()),
	})
}

// authMiddleware requires a valid bearer token on every route except token
// issuance. With an empty secret, auth is disabled (dev mode) and the
// middleware passes everything through.
func authMiddleware(secret []byte, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(secret) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/token" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			if _, err := VerifyToken(secret, token); err != nil {
				logger.Debug("rejected bearer token", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
