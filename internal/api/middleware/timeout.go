package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds every request with a deadline. Store lookups and
// outbound calls observe it through the request context; a handler that
// runs past it surfaces context.DeadlineExceeded, which is reported as a
// server error. A non-positive timeout disables the middleware.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
