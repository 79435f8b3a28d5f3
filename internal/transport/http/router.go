package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/agrismart-api/internal/config"
	"github.com/agrismart-api/internal/transport/http/handler"
	appmiddleware "github.com/agrismart-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router, such as rate-limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		logger.Warn("ignoring trusted proxies", "err", err)
		trusted = nil
	}
	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.OTPRateLimit), cfg.OTPRateBurst, trusted...)
	authMw := appmiddleware.Auth(deps.Tokens)

	healthH := handler.NewHealthHandler(deps.Checks)
	authH := handler.NewAuthHandler(deps.AuthService)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.Route("/auth", func(r chi.Router) {
			r.With(otpRL.Limit).Post("/register", authH.Register)
			r.With(otpRL.Limit).Post("/request-otp", authH.RequestOTP)
			r.With(otpRL.Limit).Post("/verify-otp", authH.VerifyOTP)
			r.Post("/refresh", authH.Refresh)
			r.With(authMw).Get("/me", authH.Me)
		})
	})

	return r
}
