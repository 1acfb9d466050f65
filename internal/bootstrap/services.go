package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/target/gatekeeper/config"
	"github.com/target/gatekeeper/internal/adapters/passwordhash"
	"github.com/target/gatekeeper/internal/adapters/ratelimit"
	redisadapter "github.com/target/gatekeeper/internal/adapters/redis"
	"github.com/target/gatekeeper/internal/adapters/sessiontoken"
	"github.com/target/gatekeeper/internal/clock"
	"github.com/target/gatekeeper/internal/data"
	"github.com/target/gatekeeper/internal/observability/notify/pagerduty"
	"github.com/target/gatekeeper/internal/observability/notify/slack"
	"github.com/target/gatekeeper/internal/observability/promsink"
	"github.com/target/gatekeeper/internal/observability/statsd"
	"github.com/target/gatekeeper/internal/ports"
	"github.com/target/gatekeeper/internal/service"
	"github.com/target/gatekeeper/internal/service/opsalert"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Identity  *service.IdentityResolver
	Accounts  *service.AccountService
	Admission *service.AdmissionController
	Hasher    *passwordhash.Hasher

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Metrics fans out to StatsD and Prometheus. Never nil.
	Metrics       statsd.Sink
	StatsdClient  *statsd.Client
	Registry      *prometheus.Registry
	OpsAlert      *opsalert.Service
	MetricsConfig config.ObservabilityMetricsConfig
}

// Close releases observability resources.
func (c ServiceContainer) Close() error {
	return c.Observability.StatsdClient.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	// Users overrides the Postgres repository (tests).
	Users  ports.UserRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

// NewServices wires the identity resolver, account service and admission controller.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	obs := buildObservability(logger, cfg.Observability)

	key, err := sessiontoken.NewSigningKey([]byte(cfg.Auth.SigningKey))
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("signing key: %w", err)
	}
	codec, err := sessiontoken.New(sessiontoken.Options{Key: key, Clock: clk})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("session token codec: %w", err)
	}

	hasher := passwordhash.New(passwordhash.Options{
		Params: passwordhash.Params{
			MemoryKiB:   cfg.Auth.Hash.MemoryKiB,
			Iterations:  cfg.Auth.Hash.Iterations,
			Parallelism: cfg.Auth.Hash.Parallelism,
		},
		Workers: cfg.Auth.Hash.Workers,
		Metrics: obs.Metrics,
	})

	users := deps.Users
	if users == nil {
		users = data.NewUserRepoWithClock(deps.DB, clk)
	}

	identityOpts := service.IdentityResolverOptions{
		Users:    users,
		Hasher:   hasher,
		Tokens:   codec,
		Clock:    clk,
		TokenTTL: cfg.Auth.TokenTTL,
		Notifier: obs.OpsAlert,
		Metrics:  obs.Metrics,
		Logger:   logger,
	}
	if deps.RedisClient != nil {
		identityOpts.Revocations = redisadapter.NewRevocationStore(deps.RedisClient)
	} else {
		logger.Warn("token revocation disabled: redis client not configured; logout only clears the cookie")
	}

	store, err := buildAdmissionStore(cfg.RateLimit, deps.RedisClient, clk)
	if err != nil {
		return ServiceContainer{}, err
	}
	logger.Info("admission control configured",
		"backend", cfg.RateLimit.Backend,
		"capacity", cfg.RateLimit.Capacity,
		"refill_interval", cfg.RateLimit.RefillInterval,
		"routes", cfg.RateLimit.Routes,
	)

	return ServiceContainer{
		Identity: service.NewIdentityResolver(identityOpts),
		Accounts: service.NewAccountService(service.AccountServiceOptions{
			Users:   users,
			Hasher:  hasher,
			Metrics: obs.Metrics,
			Logger:  logger,
		}),
		Admission: service.NewAdmissionController(service.AdmissionControllerOptions{
			Store:   store,
			Metrics: obs.Metrics,
			Logger:  logger,
		}),
		Hasher:        hasher,
		Observability: obs,
	}, nil
}

//nolint:ireturn // the backend is chosen at runtime.
func buildAdmissionStore(cfg config.RateLimitConfig, client redis.UniversalClient, clk ports.Clock) (ports.AdmissionStore, error) {
	switch cfg.Backend {
	case config.RateLimitBackendRedis:
		if client == nil {
			return nil, errors.New("redis rate limit backend selected but redis is not connected")
		}
		return redisadapter.NewAdmissionStore(client, redisadapter.AdmissionStoreOptions{
			Capacity:       cfg.Capacity,
			RefillInterval: cfg.RefillInterval,
			IdleHorizon:    cfg.IdleHorizon,
		}), nil
	default:
		return ratelimit.NewMemoryStore(ratelimit.Config{
			Capacity:       cfg.Capacity,
			RefillInterval: cfg.RefillInterval,
			IdleHorizon:    cfg.IdleHorizon,
		}, clk), nil
	}
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var sinks statsd.Fanout

	var statsdClient *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.StatsdPrefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			statsdClient = client
			sinks = append(sinks, client)
		}
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Prometheus {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sinks = append(sinks, promsink.New(registry))
	}

	return ObservabilityContainer{
		Metrics:       sinks,
		StatsdClient:  statsdClient,
		Registry:      registry,
		OpsAlert:      buildOpsAlert(obsLogger, cfg.Notifications, sinks),
		MetricsConfig: cfg.Metrics,
	}
}

// buildOpsAlert registers the Slack and PagerDuty sinks that page operators on
// security events such as an unreadable stored credential.
func buildOpsAlert(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig, metrics statsd.Sink) *opsalert.Service {
	baseLogger := logger.With("component", "ops_alert")

	if !cfg.Enabled {
		return opsalert.NewService(opsalert.Options{Logger: baseLogger, Metrics: metrics})
	}

	sinks := make([]opsalert.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, opsalert.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, opsalert.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return opsalert.NewService(opsalert.Options{
		Logger:   baseLogger,
		Sinks:    sinks,
		Cooldown: cfg.Cooldown,
		Metrics:  metrics,
	})
}

// EnsureBootstrapAdmin creates the configured admin account if it does not exist yet.
func EnsureBootstrapAdmin(ctx context.Context, accounts *service.AccountService, cfg config.BootstrapAdminConfig, logger *slog.Logger) error {
	if !cfg.Enabled() {
		return nil
	}
	created, err := accounts.EnsureAdmin(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created && logger != nil {
		logger.InfoContext(ctx, "bootstrap admin created", "username", cfg.Username)
	}
	return nil
}
