package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-otp-gate/internal/application/auth"
	"github.com/go-otp-gate/internal/config"
	"github.com/go-otp-gate/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-gate/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
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

	authSvc := auth.NewService(auth.ServiceDeps{
		Store:            deps.Store,
		Limiter:          deps.Limiter,
		Provider:         deps.Provider,
		Tokens:           deps.Tokens,
		Mailer:           deps.Mailer,
		OTPTTL:           cfg.OTPTTL,
		AppName:          cfg.MailAppName,
		FrontendURL:      cfg.FrontendURL,
		PublicBaseURL:    cfg.PublicBaseURL,
		RemoteValidation: cfg.ProviderRemoteValidation,
	})

	// 5 requests/second, burst of 10, applied to public auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, !cfg.IsDevelopment())

	r.Get("/", healthH.Root)
	r.Get("/health-check/{action}", healthH.Ping)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/register", authH.Register)
			r.Post("/verify-otp", authH.VerifyOTP)
			r.Post("/resend-otp", authH.ResendOTP)
			r.Post("/login", authH.Login)
		})

		r.With(appmiddleware.Auth(authSvc)).Get("/me", authH.Me)

		r.Get("/{provider}/login", authH.OAuthLogin)
		r.Get("/{provider}/callback", authH.OAuthCallback)
	})

	return r
}
