// Package container provides dependency injection using Uber FX
package container

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smartcrop/advisor/internal/application/advisory"
	"github.com/smartcrop/advisor/internal/application/chat"
	"github.com/smartcrop/advisor/internal/application/dashboard"
	"github.com/smartcrop/advisor/internal/application/user"
	"github.com/smartcrop/advisor/internal/domain/shared"
	"github.com/smartcrop/advisor/internal/infrastructure/ai/openai"
	"github.com/smartcrop/advisor/internal/infrastructure/config"
	"github.com/smartcrop/advisor/internal/infrastructure/geo"
	"github.com/smartcrop/advisor/internal/infrastructure/http/handlers"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/server"
	"github.com/smartcrop/advisor/internal/infrastructure/http/session"
	"github.com/smartcrop/advisor/internal/infrastructure/monitoring"
	gormrepo "github.com/smartcrop/advisor/internal/infrastructure/persistence/gorm"
	"github.com/smartcrop/advisor/internal/infrastructure/persistence/memory"
	"github.com/smartcrop/advisor/internal/infrastructure/persistence/postgres"
	redisrepo "github.com/smartcrop/advisor/internal/infrastructure/persistence/redis"
	"github.com/smartcrop/advisor/internal/infrastructure/persistence/sqlite"
	"github.com/smartcrop/advisor/internal/infrastructure/security"
	"github.com/smartcrop/advisor/internal/ports/outbound"
	"github.com/smartcrop/advisor/pkg/healthcheck"
	"github.com/smartcrop/advisor/pkg/logger"
)

// Module wires the whole service. cfg is loaded by the caller so that a
// broken configuration fails before fx starts.
func Module(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		LoggerModule,
		DatabaseModule,
		CacheModule,
		RepositoryModule,
		ProviderModule,
		ServiceModule,
		HTTPModule,
		LifecycleModule,
	)
}

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
			Service:     cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			// zap's production defaults
			SampleInitial:    100,
			SampleThereafter: 100,
		})
	},
)

// DatabaseModule provides the gorm connection for the configured driver
var DatabaseModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, places outbound.LocationLookup) (*gorm.DB, error) {
		db, err := openDatabase(cfg.Database, log)
		if err != nil {
			return nil, err
		}

		if cfg.Database.SeedDemoData {
			if err := sqlite.SeedDatabase(db, places, log); err != nil {
				log.Warn("Failed to seed database", zap.Error(err))
			}
		}

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
		return db, nil
	},
)

func openDatabase(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gormLog := gormrepo.NewLogger(log.Named("gorm"), cfg.LogLevel)

	switch cfg.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return postgres.Open(ctx, cfg, gormLog, log)
	case "", "sqlite":
		db, err := sqlite.SetupDatabase(cfg.Path, gormLog)
		if err != nil {
			return nil, fmt.Errorf("failed to setup SQLite database: %w", err)
		}
		log.Info("Connected to SQLite database",
			zap.String("path", cfg.Path),
			zap.Bool("in_memory", cfg.Path == "" || cfg.Path == ":memory:"),
		)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// CacheModule provides the cache behind sessions and token revocation:
// Redis when enabled, otherwise process memory.
var CacheModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (outbound.CacheRepository, error) {
		if !cfg.Redis.Enabled {
			log.Info("Using in-memory cache")
			cache := memory.NewCacheRepository()
			lc.Append(fx.StopHook(cache.Close))
			return cache, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := redisrepo.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(func() error { return client.Close() }))
		return redisrepo.NewCacheRepository(goredis.Cmdable(client), "smartcrop:", log), nil
	},
)

// RepositoryModule provides repository implementations
var RepositoryModule = fx.Provide(
	fx.Annotate(
		gormrepo.NewUserRepository,
		fx.As(new(outbound.UserRepository)),
	),
	fx.Annotate(
		gormrepo.NewChatRepository,
		fx.As(new(outbound.ChatRepository)),
	),
	func(cfg *config.Config, log *zap.Logger) (outbound.LocationLookup, error) {
		return geo.Load(cfg.Geo.DistrictsFile, log.Named("geo"))
	},
)

// ProviderModule provides the text-generation client and observability
var ProviderModule = fx.Provide(
	monitoring.NewMetricsCollector,
	func(cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector) *openai.Client {
		return openai.NewClient(openai.Config{
			APIKey:             cfg.AI.APIKey,
			BaseURL:            cfg.AI.BaseURL,
			Model:              cfg.AI.Model,
			Timeout:            cfg.AI.Timeout,
			RequestsPerMinute:  cfg.AI.RequestsPerMinute,
			BreakerFailures:    cfg.AI.BreakerFailures,
			BreakerOpenTimeout: cfg.AI.BreakerOpenTimeout,
			HalfOpenProbes:     cfg.AI.BreakerHalfOpenProbes,
		}, log, openai.WithStateObserver(metrics.BreakerStateChanged))
	},
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		tp, err := monitoring.NewTracingProvider(context.Background(), monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			SamplingRate:   cfg.Monitoring.SamplingRate,
			Enabled:        cfg.Monitoring.EnableTracing,
		}, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(tp.Shutdown))
		return tp, nil
	},
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	func(client *openai.Client, cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector) *advisory.Service {
		return advisory.NewService(client, log,
			advisory.WithRecorder(metrics),
			advisory.WithSampling(cfg.AI.Temperature, cfg.AI.MaxTokens),
		)
	},
	func(repo outbound.ChatRepository, client *openai.Client, cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector) *chat.Service {
		return chat.NewService(repo, client, cfg.AI.ChatTemperature, cfg.AI.MaxTokens, log, chat.WithRecorder(metrics))
	},
	func(repo outbound.UserRepository, places outbound.LocationLookup, log *zap.Logger, metrics *monitoring.MetricsCollector) *user.UserService {
		svc := user.NewUserService(repo, places, log)
		svc.Subscribe(farmerEvents(log, metrics))
		return svc
	},
	func(advisor *advisory.Service, chats *chat.Service, log *zap.Logger) *dashboard.Service {
		return dashboard.NewService(advisor, chats, nil, log)
	},
	func(cfg *config.Config, cache outbound.CacheRepository, log *zap.Logger) *security.TokenService {
		return security.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration, cache, log)
	},
	func(cfg *config.Config, cache outbound.CacheRepository, log *zap.Logger) *security.AuditLogger {
		return security.NewAuditLogger(log, cache, cfg.Auth.AuditWindow)
	},
)

// farmerEvents counts registrations and logs every farmer event.
func farmerEvents(log *zap.Logger, metrics *monitoring.MetricsCollector) shared.EventHandler {
	events := log.Named("events")
	return func(event shared.DomainEvent) error {
		events.Debug("Farmer event", zap.String("event", event.EventName()), zap.Time("at", event.OccurredAt()))
		if event.EventName() == "farmer.registered" {
			metrics.FarmerRegistered()
		}
		return nil
	}
}

// HTTPModule provides sessions, handlers, health checks and the server
var HTTPModule = fx.Provide(
	func(cache outbound.CacheRepository, cfg *config.Config, log *zap.Logger) *session.Store {
		return session.NewStore(cache, cfg.Auth, log)
	},
	func(s *user.UserService) middleware.UserFinder { return s },
	func(t *security.TokenService) middleware.TokenValidator { return t },
	func(users *user.UserService, tokens *security.TokenService, sessions *session.Store, audit *security.AuditLogger, log *zap.Logger) *handlers.AuthHandlers {
		return handlers.NewAuthHandlers(users, tokens, sessions, audit, log)
	},
	func(users *user.UserService, sessions *session.Store, log *zap.Logger) *handlers.ProfileHandlers {
		return handlers.NewProfileHandlers(users, sessions, log)
	},
	func(users *user.UserService, sessions *session.Store, cfg *config.Config, log *zap.Logger) *handlers.LanguageHandlers {
		return handlers.NewLanguageHandlers(users, sessions, cfg.Auth.LanguageCookie, cfg.Auth.SecureCookies, log)
	},
	func(advisor *advisory.Service, log *zap.Logger) *handlers.AdvisoryHandlers {
		return handlers.NewAdvisoryHandlers(advisor, log)
	},
	func(chats *chat.Service, sessions *session.Store, log *zap.Logger) *handlers.ChatHandlers {
		return handlers.NewChatHandlers(chats, sessions, log)
	},
	func(places outbound.LocationLookup, board *dashboard.Service, log *zap.Logger) *handlers.ReferenceHandlers {
		return handlers.NewReferenceHandlers(places, board, log)
	},
	newHealthCheck,
	server.NewServer,
)

func newHealthCheck(cfg *config.Config, log *zap.Logger, db *gorm.DB, cache outbound.CacheRepository, client *openai.Client, metrics *monitoring.MetricsCollector) (*healthcheck.HealthCheck, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	hc := healthcheck.New(cfg.App.Version, log.Named("health"))
	hc.Register("database", healthcheck.NewDatabaseChecker(sqlDB))
	hc.Register("cache", healthcheck.NewCacheChecker(cache))
	hc.Register("ai_provider", healthcheck.NewProviderChecker("ai_provider", client))
	hc.SetObserver(healthcheck.NewHealthMetrics("smartcrop", metrics.Registry()))
	return hc, nil
}

// LifecycleModule starts the server and tracing
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	srv *server.Server,
	_ *monitoring.TracingProvider,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting SmartCrop advisor",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("database", cfg.Database.Driver),
				zap.Bool("redis", cfg.Redis.Enabled),
			)

			go func() {
				if err := srv.Start(); err != nil {
					log.Error("HTTP server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down SmartCrop advisor")

			if err := srv.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}
			_ = log.Sync()
			return nil
		},
	})
}
