package controller

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// WithCORS returns a middleware that answers preflight requests and sets CORS
// headers for the given origins. A "*" entry allows any origin; credentials
// are only allowed when the origins are listed explicitly.
func WithCORS(allowedOrigins []string, maxAge int) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
		MaxAge:           maxAge,
	})
}
