package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/pkg/logger"
)

// RecoveryMiddleware turns a panic into a generic 500; the panic value and stack only reach the log.
func RecoveryMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
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
				logger.Scoped(r.Context(), base).ErrorContext(r.Context(), "panic recovered",
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()))

				status, body := errors.NewInternalError("internal server error", nil).ToHTTPResponse()
				writeJSON(w, status, body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
