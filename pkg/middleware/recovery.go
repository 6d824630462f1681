package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpPanicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_panics_total",
		Help: "Handler panics recovered, by method.",
	},
	[]string{"method"},
)

// Recovery turns a handler panic into a 500 envelope and logs the stack.
// A panic after the handler started writing aborts the connection instead,
// since the status line is already gone.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newStatusRecorder(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				httpPanicsTotal.WithLabelValues(r.Method).Inc()
				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", v),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", w.Header().Get(CorrelationHeader)),
					slog.Bool("response_started", rw.wroteHeader),
				)

				if rw.wroteHeader {
					panic(http.ErrAbortHandler)
				}
				writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
