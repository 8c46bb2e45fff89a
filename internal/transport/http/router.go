package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/unifiro-api/internal/config"
	"github.com/unifiro-api/internal/infrastructure/metrics"
	"github.com/unifiro-api/internal/transport/http/handler"
	appmiddleware "github.com/unifiro-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, log zerolog.Logger, deps *Deps) http.Handler {
	// Load has validated the list; a hand-built config with bad entries trusts nobody.
	proxies, _ := cfg.ProxyPrefixes()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RealIP(proxies))
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(appmiddleware.Recoverer)
	r.Use(appmiddleware.Metrics)
	r.Use(chimiddleware.RequestSize(cfg.MaxBodyMiB << 20))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	limit := func(next http.Handler) http.Handler { return next }
	if deps.Limiter != nil {
		limit = appmiddleware.RateLimit(deps.Limiter, log)
	}

	healthH := handler.NewHealthHandler(deps.Checks)
	r.Get("/health-check/{action}", healthH.Ping)
	r.Handle("/metrics", metrics.Handler())

	secure := cfg.IsProduction()
	r.Route("/api", func(r chi.Router) {
		r.Route("/users", accountRoutes(deps.Users, limit, secure))
		r.Route("/organizers", accountRoutes(deps.Organizers, limit, secure))

		intakeH := handler.NewIntakeHandler(deps.Intake)
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/contact", intakeH.Contact)
			r.Post("/register", intakeH.Register)
			r.Post("/emerge-registration", intakeH.EmergeRegistration)
			r.Post("/emergeRegistration", intakeH.EmergeRegistration)
		})
	})

	return r
}

func accountRoutes(m AccountModule, limit func(http.Handler) http.Handler, secure bool) func(chi.Router) {
	h := handler.NewAccountHandler(m.Sessions.Kind(), m.Accounts, m.Recovery, m.Sessions, secure)
	return func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Post("/verify-email", h.VerifyEmail)
			r.Post("/resend-email-otp", h.ResendEmailOTP)
			r.Post("/resend-emailOtp", h.ResendEmailOTP)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
		})
		r.With(appmiddleware.Auth(m.Sessions)).Get("/me", h.Me)
	}
}

func writeJSONMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
