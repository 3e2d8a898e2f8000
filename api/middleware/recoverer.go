package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/settlement-engine/api/responses"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. When the handler had
// already started the response nothing more is written, since a second header
// would corrupt a half-sent body. http.ErrAbortHandler is re-raised.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				err := fmt.Errorf("panic: %v", v)
				ctx := r.Context()
				if logg != nil {
					fields := map[string]any{
						"method":           r.Method,
						"path":             r.URL.Path,
						"stack":            string(debug.Stack()),
						"response_started": rec.status != 0,
					}
					if rctx := chi.RouteContext(ctx); rctx != nil {
						fields["route"] = rctx.RoutePattern()
					}
					logg.Error(logg.WithFields(ctx, fields), "handler panicked", err)
				}
				if rec.status != 0 {
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
