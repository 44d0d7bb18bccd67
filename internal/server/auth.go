package server

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// withSharedKeyAuth gates a handler behind the alert-ingest shared key,
// sent as "Authorization: Bearer <key>". An unconfigured key fails
// closed: every request is rejected rather than silently allowed.
func (s *Server) withSharedKeyAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AlertIngestSharedKey == "" {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "endpoint not configured"})
			return
		}

		token, ok := bearerToken(r)
		if !ok || token != s.cfg.AlertIngestSharedKey {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// withBearerAuth gates a handler behind the bot-webhook secret. The
// secret is accepted either as a raw shared token or as the signing key
// for an HS256 JWT, so a bot integration that already issues JWTs for
// other services can reuse its existing signer here.
func (s *Server) withBearerAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.BotWebhookSecret == "" {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "endpoint not configured"})
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		if token == s.cfg.BotWebhookSecret {
			next(w, r)
			return
		}

		if validJWT(token, s.cfg.BotWebhookSecret) {
			next(w, r)
			return
		}

		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	return strings.TrimPrefix(header, prefix), true
}

// validJWT reports whether token is a well-formed, unexpired HS256 JWT
// signed with secret. Parse errors (bad signature, expired, malformed)
// all fail closed to false.
func validJWT(token, secret string) bool {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return false
	}
	return parsed.Valid
}
