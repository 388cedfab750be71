package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aicq-agent/internal/crypto"
	"github.com/eldtechnologies/aicq-agent/internal/store"
)

type contextKey string

const (
	SignerContextKey contextKey = "signer"
	signerSlotKey    contextKey = "signer-slot"
)

// AuthMiddleware verifies signed pushes from the agents in its keyring.
type AuthMiddleware struct {
	keys   crypto.Keyring
	nonces store.NonceStore
	window time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewAuthMiddleware creates the auth middleware.
func NewAuthMiddleware(keys crypto.Keyring, nonces store.NonceStore, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		keys:   keys,
		nonces: nonces,
		window: 30 * time.Second,
		now:    time.Now,
		logger: logger,
	}
}

// RequireAuth checks the X-AICQ-* signature headers.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentID := r.Header.Get("X-AICQ-Agent")
		nonce := r.Header.Get("X-AICQ-Nonce")
		timestamp := r.Header.Get("X-AICQ-Timestamp")
		signature := r.Header.Get("X-AICQ-Signature")

		if agentID == "" || nonce == "" || timestamp == "" || signature == "" {
			jsonError(w, http.StatusUnauthorized, "missing auth headers")
			return
		}

		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid timestamp format")
			return
		}
		if !m.isTimestampValid(ts) {
			jsonError(w, http.StatusUnauthorized, "timestamp expired or too far in future")
			return
		}

		if len(nonce) < 24 {
			jsonError(w, http.StatusUnauthorized, "nonce must be at least 24 characters")
			return
		}

		used, err := m.nonces.IsNonceUsed(r.Context(), agentID, nonce)
		if err != nil {
			m.logger.Error().Err(err).Msg("nonce lookup failed")
			jsonError(w, http.StatusServiceUnavailable, "nonce store unavailable")
			return
		}
		if used {
			jsonError(w, http.StatusUnauthorized, "nonce already used")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if err := m.keys.Verify(agentID, crypto.BodyHash(body), nonce, ts, signature); err != nil {
			m.logger.Warn().
				Str("type", "security").
				Str("event", "bad_signature").
				Str("agent", agentID).
				Err(err).
				Msg("rejected signed request")
			jsonError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		if err := m.nonces.MarkNonceUsed(r.Context(), agentID, nonce, 3*m.window); err != nil {
			m.logger.Warn().Err(err).Msg("recording nonce failed")
		}

		if slot, ok := r.Context().Value(signerSlotKey).(*string); ok {
			*slot = agentID
		}
		ctx := context.WithValue(r.Context(), SignerContextKey, agentID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isTimestampValid accepts timestamps from the past window only.
func (m *AuthMiddleware) isTimestampValid(ts int64) bool {
	now := m.now().UnixMilli()
	return ts > now-m.window.Milliseconds() && ts <= now
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// SignerFromContext returns the id that signed the request, if any.
func SignerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(SignerContextKey).(string)
	return id
}

func withSignerSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, signerSlotKey, slot)
}
