package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mind-engage/skillway/internal/apierr"
	auth "github.com/mind-engage/skillway/internal/auth/middleware"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/logger"
	"github.com/mind-engage/skillway/internal/metrics"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail writes err as a JSON error. Server-side failures are logged with
// the request id; client errors are not.
func fail(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	ae := apierr.From(err)
	if ae.Status >= 500 {
		log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"code", ae.Code,
			"error", err,
		)
	}
	apierr.Write(w, r, err)
}

// caller returns the authenticated identity. Routes using it are mounted
// behind AttachCaller, so a missing caller is a wiring bug.
func caller(w http.ResponseWriter, r *http.Request) (content.Caller, bool) {
	c, ok := auth.CallerFromContext(r.Context())
	if !ok {
		apierr.Write(w, r, apierr.Unauthorized(errors.New("no caller in context")))
	}
	return c, ok
}

// AccessLog logs one line per request and feeds the API metrics. The route
// label is chi's pattern, not the raw path, to keep label cardinality flat.
func AccessLog(log *logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			dur := time.Since(start)
			m.ObserveAPI(r.Method, route, status, dur)

			kv := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", dur.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if status >= 500 {
				log.Warn("http request", kv...)
				return
			}
			log.Debug("http request", kv...)
		})
	}
}
