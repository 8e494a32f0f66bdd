package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-user-service/internal/application/auth"
	"github.com/go-user-service/internal/application/otp"
	"github.com/go-user-service/internal/application/reset"
	"github.com/go-user-service/internal/application/user"
	"github.com/go-user-service/internal/config"
	jwtinfra "github.com/go-user-service/internal/infrastructure/jwt"
	"github.com/go-user-service/internal/infrastructure/smtp"
	"github.com/go-user-service/internal/infrastructure/sns"
	"github.com/go-user-service/internal/pkg/password"
	"github.com/go-user-service/internal/transport/http/handler"
	appmiddleware "github.com/go-user-service/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo          UserRepository
	VerificationStore VerificationStore
	Mailer            smtp.Mailer
	SMSSender         sns.SMSSender // nil disables SMS delivery
	JWTProvider       *jwtinfra.Provider
	Metrics           prometheus.Gatherer // nil disables /metrics
	RateLimiter       *appmiddleware.RateLimiter
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		// Rewrites RemoteAddr from X-Forwarded-For/X-Real-Ip before logging and rate limiting.
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 on the public auth endpoints.
	sensitiveRL := deps.RateLimiter
	if sensitiveRL == nil {
		sensitiveRL = appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	}

	hasher := password.NewHasher(cfg.BcryptCost)
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:    deps.UserRepo,
		Hasher:      hasher,
		Codes:       otp.NewManager(deps.VerificationStore, cfg.TwoFactorTTL).WithMaxAttempts(cfg.TwoFactorMaxAttempts),
		Resets:      reset.NewManager(deps.VerificationStore, cfg.ResetTokenTTL),
		JWTProvider: deps.JWTProvider,
		Mailer:      deps.Mailer,
		SMSSender:   deps.SMSSender,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo, Hasher: hasher})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/auth/login", authH.Login)
			r.Post("/auth/verify-2fa", authH.VerifySecondFactor)
			r.Post("/auth/reset-password/request", authH.RequestPasswordReset)
			r.Post("/auth/reset-password/complete", authH.CompletePasswordReset)
			r.Post("/users/register", userH.Register)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.JWTProvider))
			r.Get("/users/me", userH.Me)
			r.Post("/users/me/2fa/{action}", userH.TwoFactor)
		})
	})

	return r
}
