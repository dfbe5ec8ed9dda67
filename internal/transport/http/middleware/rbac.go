package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"restopay/internal/transport/http/api"
)

// PermissionStore decides whether a role holds a permission.
type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// RequirePermission lets the request through only for an authenticated caller
// whose role holds permission. Denials are logged with the request id.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}

			allowed, err := store.HasPermission(r.Context(), user.RoleName, permission)
			switch {
			case err != nil:
				slog.Error("permission check failed", "requestId", requestID, "role", user.RoleName, "permission", permission, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
			case !allowed:
				slog.Info("permission denied", "requestId", requestID, "userId", user.UserID, "role", user.RoleName, "permission", permission)
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
