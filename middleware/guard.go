package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goReset "github.com/MrEthical07/goReset"
)

// SessionValidator is satisfied by *goReset.Engine.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (goReset.SessionInfo, error)
}

type sessionContextKey struct{}

func SessionFromContext(ctx context.Context) (goReset.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(goReset.SessionInfo)
	return info, ok
}

// RequireSession rejects requests without a valid bearer session token and
// stores the session in the request context for downstream handlers.
func RequireSession(v SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			info, err := v.ValidateSession(r.Context(), token)
			if err != nil {
				if errors.Is(err, goReset.ErrSessionUnavailable) || errors.Is(err, goReset.ErrEngineNotReady) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
