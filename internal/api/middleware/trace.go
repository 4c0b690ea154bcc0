package middleware

import (
	"log/slog"
	"net/http"

	"github.com/vishalm/staycrest-sub000/internal/api/shared"
	"github.com/vishalm/staycrest-sub000/internal/platform/logger"
)

// TraceMiddleware returns middleware that adds a trace ID to the request
// context, echoes it in the X-Trace-ID response header and installs a
// request-scoped logger carrying it. Apply it early in the chain so handler
// logs carry the trace ID. Workers log through the pool's logger without it;
// the handler's "task submitted" entry pairs the trace ID with the task ID.
func TraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set(shared.TraceIDHeader, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
