package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Luuk00/eco-costa-track/internal/core"
	"github.com/Luuk00/eco-costa-track/internal/logging"
)

// TenantHeader carries the company id on every API request.
const TenantHeader = "X-Empresa-ID"

// tenantQueryParam is accepted when headers cannot be set, as with browser
// WebSocket handshakes.
const tenantQueryParam = "empresa_id"

// Tenant resolves the company id from the X-Empresa-ID header (or the
// empresa_id query parameter) and stores it on the request context.
// Requests without a valid uuid are rejected with 400.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(TenantHeader))
		if raw == "" {
			raw = strings.TrimSpace(r.URL.Query().Get(tenantQueryParam))
		}

		id, err := uuid.Parse(raw)
		if raw == "" || err != nil || id == uuid.Nil {
			slog.Warn("tenant: missing or invalid company id",
				"path", r.URL.Path,
				"method", r.Method,
				"value", raw,
			)
			msg := core.MapError(core.ErrMissingTenant)
			reject(w, http.StatusBadRequest, msg.Message, msg.Action, msg.Code)
			return
		}

		tenant := core.Tenant{ID: id}
		ctx := core.ContextWithTenant(r.Context(), tenant)
		ctx = logging.ContextWithAttrs(ctx, "tenant_id", tenant.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
