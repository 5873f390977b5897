// Package server assembles the advisory HTTP API: middleware chain, route
// table and the listening http.Server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/smartcrop/advisor/internal/infrastructure/config"
	"github.com/smartcrop/advisor/internal/infrastructure/http/handlers"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/render"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
	"github.com/smartcrop/advisor/internal/infrastructure/monitoring"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
	"github.com/smartcrop/advisor/pkg/healthcheck"
)

// Params are the server dependencies
type Params struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Sessions *session.Store
	Users    middleware.UserFinder
	Tokens   middleware.TokenValidator
	Metrics  *monitoring.MetricsCollector
	Health   *healthcheck.HealthCheck

	Auth      *handlers.AuthHandlers
	Profile   *handlers.ProfileHandlers
	Language  *handlers.LanguageHandlers
	Advisory  *handlers.AdvisoryHandlers
	Chat      *handlers.ChatHandlers
	Reference *handlers.ReferenceHandlers
}

// Server represents the HTTP server
type Server struct {
	p      Params
	logger *zap.Logger
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(p Params) (*Server, error) {
	s := &Server{
		p:      p,
		logger: p.Logger.Named("http"),
	}
	s.router = s.setupRouter()

	cfg := p.Config.Server
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureServer(s.server, &http2.Server{IdleTimeout: cfg.IdleTimeout}); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	}

	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the HTTP router with middleware and routes
func (s *Server) setupRouter() *chi.Mux {
	cfg := s.p.Config
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	}
	if cfg.Server.EnableCompression {
		r.Use(chimiddleware.Compress(5))
	}
	if cfg.Monitoring.EnableMetrics {
		r.Use(s.p.Metrics.HTTPMiddleware)
	}
	if cfg.Monitoring.EnableTracing {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "smartcrop-http",
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return r.Method + " " + r.URL.Path
				}),
			)
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Error(w, r, s.logger, apperrors.NewNotFoundError("Route"))
	})

	// Operational endpoints skip session handling.
	healthPath := cfg.Monitoring.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	r.Get(healthPath, s.p.Health.Handler())
	r.Get(healthPath+"/live", s.p.Health.LivenessHandler())
	r.Get(healthPath+"/ready", s.p.Health.ReadinessHandler())
	if cfg.Monitoring.EnableMetrics {
		metricsPath := cfg.Monitoring.MetricsPath
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.Handle(metricsPath, s.p.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Sessions(s.p.Sessions))
		r.Use(middleware.Authenticate(s.p.Users, s.p.Tokens, s.p.Sessions, s.logger))
		r.Use(middleware.ResolveLanguage(s.p.Sessions, s.logger))

		s.setupPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(s.logger))
			s.setupFarmerRoutes(r)
		})
	})

	return r
}

func (s *Server) setupPublicRoutes(r chi.Router) {
	r.Post("/signup", s.p.Auth.Signup)
	r.Post("/login", s.p.Auth.Login)
	r.Post("/logout", s.p.Auth.Logout)
	r.Get("/check-auth", s.p.Auth.CheckAuth)

	r.Get("/api/languages", s.p.Language.ListLanguages)
	r.Post("/api/set-guest-language", s.p.Language.SetGuestLanguage)
	r.Get("/api/detect-language", s.p.Language.DetectLanguage)

	r.Get("/states-districts.json", s.p.Reference.StatesDistricts)
	r.Get("/dashboard-data", s.p.Reference.DashboardData)

	r.Route("/chat", func(r chi.Router) {
		r.Post("/init", s.p.Chat.InitChat)
		r.Get("/{sessionID}/messages", s.p.Chat.Messages)
		r.With(s.providerLimit()).Post("/", s.p.Chat.Chat)
	})
}

func (s *Server) setupFarmerRoutes(r chi.Router) {
	r.Get("/user/profile", s.p.Profile.GetProfile)
	r.Get("/user/data", s.p.Profile.GetUserData)
	r.Get("/user/chat-sessions", s.p.Chat.Sessions)
	r.Post("/save-profile", s.p.Profile.SaveProfile)

	r.Post("/api/set-language", s.p.Language.SetLanguage)
	r.Post("/api/voice/settings", s.p.Profile.UpdateVoiceSettings)

	r.Group(func(r chi.Router) {
		r.Use(s.providerLimit())
		r.Post("/api/personalized-market", s.p.Advisory.PersonalizedMarket)
		r.Post("/api/fertilizer-recommendation", s.p.Advisory.FertilizerRecommendation)
		r.Get("/api/quick-recommendations", s.p.Advisory.QuickRecommendations)
		r.Get("/api/task-recommendation/{taskType}", s.p.Advisory.TaskRecommendation)
	})
}

// providerLimit caps provider-backed calls per client IP.
func (s *Server) providerLimit() func(http.Handler) http.Handler {
	rl := s.p.Config.RateLimit
	if !rl.Enable || rl.RequestsPerMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(rl.RequestsPerMin, rl.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			render.Error(w, r, s.logger, apperrors.NewTooManyRequestsError())
		}),
	)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.server.Addr),
		zap.String("environment", s.p.Config.App.Environment),
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
