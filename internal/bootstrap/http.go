package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/gatekeeper/config"
	httpx "github.com/target/gatekeeper/internal/http"
	"github.com/target/gatekeeper/internal/observability/promsink"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	// App and AdminApp are the protected handlers behind the guards (optional).
	App      http.Handler
	AdminApp http.Handler
	Logger   *slog.Logger
}

// BuildHandler assembles the router for cfg.
func BuildHandler(cfg *HTTPServerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Identity:          cfg.Services.Identity,
		Accounts:          cfg.Services.Accounts,
		Admission:         cfg.Services.Admission,
		RateLimitedRoutes: appCfg.RateLimit.Routes,
		TrustProxyHeaders: appCfg.RateLimit.TrustProxyHeaders,
		AllowRegistration: appCfg.Auth.AllowRegistration,
		CookieName:        appCfg.Auth.CookieName,
		CookieDomain:      appCfg.HTTP.CookieDomain,
		LoginPath:         appCfg.Auth.LoginPath,
		App:               cfg.App,
		AdminApp:          cfg.AdminApp,
		HealthChecks:      healthChecks(cfg.DB, cfg.RedisClient),
		Metrics:           cfg.Services.Observability.Metrics,
		Logger:            logger,
	}
	if reg := cfg.Services.Observability.Registry; reg != nil {
		services.MetricsHandler = promsink.Handler(reg)
	}

	return httpx.NewRouter(services)
}

func healthChecks(db *sql.DB, client redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := make(map[string]httpx.HealthCheck, 2)
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// StartHTTPServer creates and starts the HTTP server. Listen failures are sent on errCh.
func StartHTTPServer(cfg *HTTPServerConfig, errCh chan<- error) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpCfg := config.HTTPConfig{}
	if cfg.Config != nil {
		httpCfg = cfg.Config.HTTP
	}
	httpCfg.Sanitize()

	server := &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           BuildHandler(cfg),
		ReadHeaderTimeout: httpCfg.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			errCh <- err
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	if err := cfg.Server.Shutdown(cfg.Context); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}

// RunWithShutdown serves HTTP until ctx is canceled, SIGINT/SIGTERM arrives or the listener fails.
func RunWithShutdown(ctx context.Context, cfg *HTTPServerConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	errCh := make(chan error, 1)
	server := StartHTTPServer(cfg, errCh)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case <-sigCtx.Done():
		logger.Info("shutting down services...")
	case serveErr = <-errCh:
	}

	httpCfg := cfg.Config.HTTP
	httpCfg.Sanitize()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpCfg.ShutdownTimeout)
	defer cancel()
	if err := ShutdownHTTPServer(ShutdownConfig{Context: shutdownCtx, Server: server, Logger: logger}); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}
