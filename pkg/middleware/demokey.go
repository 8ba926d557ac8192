package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// DemoKeyHeader is the header checked by DemoKey
const DemoKeyHeader = "X-Demo-Key"

// DemoKey rejects requests whose X-Demo-Key header does not match key.
// An empty key disables the check.
func DemoKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(DemoKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				Logger(r.Context()).Warn("Rejected request with invalid demo key",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   http.StatusText(http.StatusUnauthorized),
					"message": "Missing or invalid " + DemoKeyHeader + " header",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
