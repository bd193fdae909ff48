package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// RecoverMiddleware turns a panic anywhere below it into a 3000 envelope with
// HTTP 500. The panic value and stack are logged, never sent.
func RecoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)
				oe := ocpi.WriteError(w, fmt.Errorf("panic: %v", rec))
				RecordStatus(r.Context(), oe.Code)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
