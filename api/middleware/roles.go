package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/settlement-engine/api/responses"
	"github.com/angelmondragon/settlement-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-engine/pkg/errors"
	"github.com/angelmondragon/settlement-engine/pkg/logger"
)

// RequireRole admits only callers holding one of roles. A request with no role at
// all never passed Auth and gets 401; a known role outside the set gets 403 naming
// the accepted roles. Denials are logged since they guard escrow
// and payment signal routes.
func RequireRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	accepted := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed[string(role)] = struct{}{}
		accepted = append(accepted, string(role))
	}
	denied := "route requires role " + strings.Join(accepted, " or ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := RoleFromContext(ctx)
			if _, ok := allowed[role]; ok {
				next.ServeHTTP(w, r)
				return
			}

			if role == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor role"))
				return
			}
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"actor_role":     role,
					"accepted_roles": accepted,
					"path":           r.URL.Path,
				}), "role denied")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, denied))
		})
	}
}
