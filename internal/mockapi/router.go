package mockapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-academic-portal/internal/middleware"
)

type RouterConfig struct {
	APIKey           string
	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
	RequestTimeout   time.Duration
}

// NewRouter mounts the auth endpoints. Verify and refresh require the API
// key when one is configured; login never does.
func NewRouter(cfg RouterConfig, service *AuthService) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	authMiddleware := middleware.NewAuthMiddleware(service)
	authHandler := NewAuthHandler(service)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/auth", func(auth chi.Router) {
		auth.Use(middleware.Timeout(cfg.RequestTimeout))

		auth.Post("/login", authHandler.Login)
		auth.Group(func(keyed chi.Router) {
			keyed.Use(middleware.RequireAPIKey(cfg.APIKey))
			keyed.With(authMiddleware.RequireAuth).Get("/verify", authHandler.Verify)
			keyed.Post("/refresh", authHandler.Refresh)
		})
	})

	return r
}
