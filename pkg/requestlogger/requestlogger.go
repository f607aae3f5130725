// Package requestlogger provides a zerolog access log for the destruction
// endpoints. Destruction calls are audited, so every request gets exactly
// one log line carrying a request id.
package requestlogger

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
)

// Middleware logs one line per request, leveled by response status:
// 5xx as error, 4xx as warn, everything else as info. Paths in pathFilters
// are skipped, which keeps metrics scrapes out of the access log.
func Middleware(logger zerolog.Logger, pathFilters ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			for _, filter := range pathFilters {
				if filter == r.URL.Path {
					next.ServeHTTP(w, r)
					return
				}
			}

			log := logger.With().Str("request_id", shortuuid.New()).Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()

			next.ServeHTTP(ww, r)

			event := log.Info()
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				event = log.Error()
			case ww.Status() >= http.StatusBadRequest:
				event = log.Warn()
			}

			event.Timestamp().
				Str("remote_ip", r.RemoteAddr).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("user_agent", r.Header.Get("User-Agent")).
				Int("status", ww.Status()).
				Int64("bytes_in", r.ContentLength).
				Int("bytes_out", ww.BytesWritten()).
				Dur("latency_ms", time.Since(start)).
				Msg("incoming_request")
		}

		return http.HandlerFunc(fn)
	}
}
