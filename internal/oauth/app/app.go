package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/gatekeeper/internal/oauth/http"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/metrics"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/session"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v0.1.0"

const serviceName = "gatekeeper"

// Application encapsulates the gatekeeper service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	sessions session.Store
	metrics  *metrics.Metrics

	// Services
	authServer    *service.AuthorizationServer
	logoutService *service.LogoutService

	// HTTP servers
	server        *http.Server
	router        *httpapi.Router
	metricsServer *metrics.Server // nil when metrics are disabled
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	cryptox.SetBcryptCost(cfg.BcryptCost)

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initSessions(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	if err := app.initHTTP(); err != nil {
		app.closeStores()
		return nil, err
	}

	return app, nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: serviceName,
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Store returns the token store.
func (app *Application) Store() store.Store { return app.db }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gatekeeper starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"db_driver", app.cfg.DBDriver,
		"session_store", app.cfg.SessionStore,
	)

	serverErrors := make(chan error, 2)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()
	if app.metricsServer != nil {
		go func() {
			serverErrors <- app.metricsServer.Start()
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeeper...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Shutdown(ctx); err != nil {
			app.logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("gatekeeper stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if err := app.sessions.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
		errs = append(errs, err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// OpenStore opens the configured token store without migrating it.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.DBDriver {
	case DriverPostgres:
		st, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return st, nil
	case DriverSQLite:
		st, err := sqlite.NewStore(sqlite.FileDSN(cfg.DatabaseFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}

// initDatabase opens the token store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := OpenStore(ctx, app.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DBDriver)
	return nil
}

func (app *Application) initSessions(ctx context.Context) error {
	if app.cfg.SessionStore == SessionsRedis {
		rs, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize session store: %w", err)
		}
		app.sessions = rs
		return nil
	}

	app.sessions = session.NewMemoryStore(time.Now)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	verifier := service.NewCredentialVerifier(app.db, app.cfg.OAuth.RequireVerification)
	app.authServer = service.NewAuthorizationServer(app.db, verifier, app.cfg.OAuth)
	app.logoutService = &service.LogoutService{Store: app.db}

	if app.cfg.MetricsEnabled {
		app.metrics = metrics.New()
	}
}

// initHTTP initializes the HTTP router and servers
func (app *Application) initHTTP() error {
	secret := []byte(app.cfg.SessionSecret)
	if len(secret) == 0 {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		secret = []byte(generated)
		app.logger.Warn("SESSION_SECRET not set; using a random key, sessions will not survive restarts")
	}
	codec, err := jwtx.NewHS256(secret, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize session codec: %w", err)
	}
	manager := session.NewManager(app.sessions, codec, app.cfg.SessionTTL,
		session.WithSecureCookie(app.cfg.SessionCookieSecure),
	)

	router := httpapi.NewRouter(app.db, manager, BuildVersion, app.logger)
	router.AuthorizationServer = app.authServer
	router.LogoutService = app.logoutService
	router.Metrics = app.metrics // nil when disabled
	router.Limits.TrustProxy = app.cfg.TrustProxyHeaders
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	if app.metrics != nil {
		app.metricsServer = metrics.NewServer(app.cfg.MetricsAddr, app.metrics, app.logger)
	}
	return nil
}
