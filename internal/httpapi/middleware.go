package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/darshil0/DineAI/internal/logging"
	"github.com/darshil0/DineAI/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestID takes the caller's X-Request-ID or generates one, stores it in
// the request context and echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = logging.GenerateRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// observe logs each request and records its latency under the matched route
// pattern, so path parameters do not blow up label cardinality.
func observe(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			duration := time.Since(start)
			metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), duration)

			l := logging.Ctx(r.Context(), logger)
			event := l.Debug()
			if status >= http.StatusInternalServerError {
				event = l.Warn()
			}
			event.
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Dur("duration", duration).
				Msg("request")
		})
	}
}
