package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/ticket-sale/internal/auth"
)

type principalKey struct{}

// BuyerIDFromContext returns the authenticated buyer id set by
// Authenticator.
func BuyerIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(principalKey{}).(auth.Claims)
	if !ok || claims.BuyerID == "" {
		return "", false
	}
	return claims.BuyerID, true
}

func withClaims(ctx context.Context, claims auth.Claims) context.Context {
	return context.WithValue(ctx, principalKey{}, claims)
}

// bearerToken extracts the token of an "Authorization: Bearer <token>"
// header value.
func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

type Authenticator struct {
	tokens *auth.TokenManager
}

func NewAuthenticator(tokens *auth.TokenManager) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Verify rejects requests without a bearer token with 401 and requests
// with an invalid one with 403.
func (a *Authenticator) Verify(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, RESTEnvelope{
				Status:  StatusUnauthenticated,
				Message: "please log in first",
			})
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusForbidden, RESTEnvelope{
				Status:  StatusForbidden,
				Message: "invalid token",
			})
			return
		}

		next(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs one line per request; 5xx responses at error level.
func RequestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			entry := logger.WithContext(r.Context()).WithFields(logrus.Fields{
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  rec.status,
				"latency": time.Since(start).String(),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Error("request failed")
				return
			}
			entry.Info("request served")
		})
	}
}
