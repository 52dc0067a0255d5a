package di

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"millionx-backend/application/commands"
	commandbus "millionx-backend/application/commands/bus"
	"millionx-backend/application/ports"
	"millionx-backend/application/queries"
	querybus "millionx-backend/application/queries/bus"
	"millionx-backend/application/services"
	domainconfig "millionx-backend/domain/config"
	"millionx-backend/domain/versioning"
	"millionx-backend/infrastructure/config"
	"millionx-backend/infrastructure/events"
	"millionx-backend/infrastructure/llm"
	"millionx-backend/infrastructure/mail"
	"millionx-backend/infrastructure/persistence/sqlite"
	"millionx-backend/pkg/auth"
	"millionx-backend/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build()
}

// ProvideDomainConfig selects domain limits for the environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(cfg.Environment)
}

// ProvideTunables starts the hot-reloading tunables provider
func ProvideTunables(cfg *config.Config, logger *zap.Logger) (*config.TunablesProvider, error) {
	return config.NewTunablesProvider(cfg.TunablesPath, logger)
}

// ProvideDB opens the SQLite store and runs migrations
func ProvideDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return sqlite.Open(ctx, cfg.DatabasePath)
}

// ProvideSnapshotCodec creates the session snapshot codec
func ProvideSnapshotCodec() *versioning.SnapshotCodec {
	return versioning.NewSnapshotCodec()
}

// ProvideSessionRepository creates a session repository
func ProvideSessionRepository(db *sql.DB, codec *versioning.SnapshotCodec, domainCfg *domainconfig.DomainConfig) ports.SessionRepository {
	return sqlite.NewSessionRepository(db, codec, domainCfg)
}

// ProvideUserRepository creates a user repository
func ProvideUserRepository(db *sql.DB) ports.UserRepository {
	return sqlite.NewUserRepository(db)
}

// ProvideAuthRepository creates an auth repository
func ProvideAuthRepository(db *sql.DB) ports.AuthRepository {
	return sqlite.NewAuthRepository(db)
}

// ProvideMetrics creates the Prometheus metrics registry
func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics("millionx")
}

// ProvideAIGateway creates the LLM provider gateway
func ProvideAIGateway(cfg *config.Config, tunables *config.TunablesProvider, metrics *observability.Metrics, logger *zap.Logger) ports.AIGateway {
	return llm.NewGateway(cfg, tunables, metrics, logger)
}

// ProvideMailer selects SMTP delivery when a host is configured,
// otherwise links are written to the log for local development.
func ProvideMailer(cfg *config.Config, logger *zap.Logger) ports.Mailer {
	if cfg.SMTPHost != "" {
		return mail.NewSMTPMailer(cfg, logger)
	}
	return mail.NewLogMailer(logger)
}

// ProvideEventPublisher creates the domain event publisher
func ProvideEventPublisher(logger *zap.Logger) ports.EventPublisher {
	return events.NewZapPublisher(logger)
}

// ProvideTokenIssuer creates the magic-link token issuer
func ProvideTokenIssuer(cfg *config.Config) (*auth.TokenIssuer, error) {
	return auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer)
}

// ProvideRateLimiter creates the per-email magic link limiter
func ProvideRateLimiter(cfg *config.Config) auth.RateLimiter {
	perSecond := float64(cfg.MagicLinkPerHour) / 3600
	return auth.NewTokenBucketLimiter(perSecond, float64(cfg.MagicLinkPerHour))
}

// ProvideAuthService creates the authentication service
func ProvideAuthService(
	cfg *config.Config,
	users ports.UserRepository,
	sessions ports.AuthRepository,
	mailer ports.Mailer,
	tokens *auth.TokenIssuer,
	limiter auth.RateLimiter,
	logger *zap.Logger,
) *services.AuthService {
	return services.NewAuthService(users, sessions, mailer, tokens, limiter, logger, cfg.BaseURL, cfg.MagicLinkTTL, cfg.SessionTTL)
}

// ProvideController creates the exploration controller
func ProvideController(
	sessions ports.SessionRepository,
	users ports.UserRepository,
	ai ports.AIGateway,
	publisher ports.EventPublisher,
	domainCfg *domainconfig.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *services.ExplorationController {
	return services.NewExplorationController(sessions, users, ai, publisher, domainCfg, logger, metrics)
}

// ProvideInMemoryCache creates the query cache
func ProvideInMemoryCache() querybus.Cache {
	return NewInMemoryCache()
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	controller *services.ExplorationController,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*commandbus.CommandBus, error) {
	bus := commandbus.NewCommandBus()

	middlewares := []commandbus.Middleware{
		commandbus.LoggingMiddleware(logger),
		commandbus.MetricsMiddleware(metrics),
	}

	// Commands travel as pointers so handlers can write results back.
	registrations := []struct {
		cmd     commandbus.Command
		handler commandbus.CommandHandler
	}{
		{&commands.StartTopicCommand{}, commands.NewStartTopicHandler(controller)},
		{&commands.EnsureNodeContentCommand{}, commands.NewEnsureNodeContentHandler(controller)},
		{&commands.ExpandNodeCommand{}, commands.NewExpandNodeHandler(controller)},
		{&commands.RecordChatTurnCommand{}, commands.NewRecordChatTurnHandler(controller)},
		{&commands.ClearChatCommand{}, commands.NewClearChatHandler(controller)},
		{&commands.MoveNodeCommand{}, commands.NewMoveNodeHandler(controller)},
		{&commands.DeleteSessionCommand{}, commands.NewDeleteSessionHandler(controller)},
		{&commands.SyncCursorsCommand{}, commands.NewSyncCursorsHandler(controller)},
	}

	for _, reg := range registrations {
		if err := bus.Register(reg.cmd, commandbus.Wrap(reg.handler, middlewares...)); err != nil {
			return nil, err
		}
	}

	return bus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	sessions ports.SessionRepository,
	domainCfg *domainconfig.DomainConfig,
	cache querybus.Cache,
	metrics *observability.Metrics,
) (*querybus.QueryBus, error) {
	bus := querybus.NewQueryBus()

	metricsWrap := querybus.NewMetricsMiddleware(metrics)
	// Session listings change on every write; a short TTL keeps the
	// dashboard snappy without serving stale rows for long.
	cacheWrap := querybus.NewCachingMiddleware(cache, 5*time.Second)

	if err := bus.Register(queries.ListSessionsQuery{},
		cacheWrap.Wrap(metricsWrap.Wrap(queries.NewListSessionsHandler(sessions)))); err != nil {
		return nil, err
	}
	if err := bus.Register(queries.GetSessionQuery{},
		metricsWrap.Wrap(queries.NewGetSessionHandler(sessions))); err != nil {
		return nil, err
	}
	if err := bus.Register(queries.GetGraphViewQuery{},
		metricsWrap.Wrap(queries.NewGetGraphViewHandler(sessions, domainCfg))); err != nil {
		return nil, err
	}

	return bus, nil
}
