package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Gateways and the storefront send their own trace ids; anything else is replaced
// so it can never break a log line or a response header.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID tags the request with a trace id, reusing the caller's id when it is
// well formed, and echoes it back on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get(requestIDHeader)
			reqID := supplied
			if !requestIDPattern.MatchString(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
				if supplied != "" && supplied != reqID {
					logg.Warn(logg.WithField(ctx, "supplied_len", len(supplied)), "request id header rejected")
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
