package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/keihiworks/keihi/internal/config"
)

type contextKey string

const userKey contextKey = "auth_user"

// UserFromContext returns the authenticated username, or "" when the
// request did not pass BasicAuth.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// BasicAuth returns middleware that validates HTTP Basic credentials
// against the configured username/password pair. Failures get a 401
// with a WWW-Authenticate challenge before any business logic runs; on
// success the username is stored in the request context for audit logs.
func BasicAuth(cfg *config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()

			// Both comparisons always run so response time does not
			// reveal which credential was wrong.
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Username))
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Password))

			if !ok || userOK&passOK != 1 {
				slog.Warn("auth: invalid credentials",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				w.Header().Set("WWW-Authenticate", `Basic realm="`+cfg.Realm+`"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"認証に失敗しました。","code":"AUTH001"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}
