package controller

import "net/http"

// SecurityHeaders are set on every response passing through WithSecurityHeaders.
type SecurityHeaders struct {
	ContentSecurityPolicy   string
	StrictTransportSecurity string
}

// WithSecurityHeaders returns a middleware that sets the browser hardening
// headers before the handler runs, so they are present on errors too.
func WithSecurityHeaders(headers SecurityHeaders) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if headers.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", headers.ContentSecurityPolicy)
			}
			if headers.StrictTransportSecurity != "" {
				h.Set("Strict-Transport-Security", headers.StrictTransportSecurity)
			}
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			next.ServeHTTP(w, r)
		})
	}
}
