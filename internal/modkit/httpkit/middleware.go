package httpkit

import (
	"net/http"
	"time"

	"campaigncollector/internal/platform/net/middleware"
)

// CommonStack is the api-scope middleware; the outer stack comes from middleware.Defaults
// origins lists the sites whose browser tags call the api with credentials; empty allows any origin
func CommonStack(origins []string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.NoCache(),
		middleware.CORS(middleware.CORSOptions{
			AllowedOrigins:   origins,
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Collector-Page", "X-Collector-Referrer"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(30 * time.Second),
	}
}
