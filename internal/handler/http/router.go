package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/XxvipoxX/ChaosAWS/internal/auth"
	"github.com/XxvipoxX/ChaosAWS/internal/service"
	"github.com/XxvipoxX/ChaosAWS/pkg/health"
	"github.com/XxvipoxX/ChaosAWS/pkg/middleware"
)

// serviceName labels request metrics and spans.
const serviceName = "chaos"

// Services groups the application services exposed over HTTP.
type Services struct {
	Accounts *service.AccountService
	Carts    *service.CartService
	Orders   *service.OrderService
	Resets   *service.PasswordResetService
}

// RouterConfig holds the HTTP-facing settings of the router.
type RouterConfig struct {
	CORS               CORSConfig
	RateLimitPerMinute int
	RateLimitBurst     int
	AuthRatePerMinute  int
	// MediaRoot is served under /media/ when set.
	MediaRoot string
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	svcs Services,
	jwtManager *auth.JWTManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if cfg.MediaRoot != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaRoot))))
	}

	authenticate := middleware.Auth(jwtManager.Validator())

	authHandler := NewAuthHandler(svcs.Accounts, svcs.Resets, logger)
	accountHandler := NewAccountHandler(svcs.Accounts, logger)
	cartHandler := NewCartHandler(svcs.Carts, logger)
	orderHandler := NewOrderHandler(svcs.Orders, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst, logger))

		// Auth endpoints (public)
		r.Route("/auth", func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(middleware.RateLimit(cfg.AuthRatePerMinute, cfg.AuthRatePerMinute, logger))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Get("/reset-password/{token}", authHandler.ValidateResetToken)
			r.Post("/reset-password/{token}", authHandler.ResetPassword)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Use(ContentTypes("application/json", "multipart/form-data"))
			r.Use(authenticate)

			r.Get("/me", accountHandler.GetProfile)
			r.Put("/me", accountHandler.UpdateProfile)
		})

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(authenticate)

			r.Get("/cart", cartHandler.Get)
			r.Delete("/cart", cartHandler.Clear)
			r.Post("/cart/items", cartHandler.Add)
			r.Delete("/cart/items/{plan}", cartHandler.Remove)

			r.Post("/checkout", orderHandler.Checkout)

			r.Get("/orders", orderHandler.List)
			r.Get("/orders/{id}", orderHandler.Get)
			r.Post("/orders/{id}/pay", orderHandler.Pay)
			r.Post("/orders/{id}/cancel", orderHandler.Cancel)
			r.Post("/orders/{id}/refund", orderHandler.Refund)
		})
	})

	return r
}
