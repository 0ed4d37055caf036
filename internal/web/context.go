package web

import (
	"net/http"

	"github.com/Luuk00/eco-costa-track/internal/core"
)

// requestMetadata adds client IP and User-Agent to the request context so the
// service can log who committed an import.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), clientIP(r)) // RemoteAddr already processed by TrustedRealIP
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
