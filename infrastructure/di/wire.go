//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"database/sql"

	"github.com/google/wire"
	"go.uber.org/zap"

	commandbus "millionx-backend/application/commands/bus"
	"millionx-backend/application/ports"
	querybus "millionx-backend/application/queries/bus"
	"millionx-backend/application/services"
	domainconfig "millionx-backend/domain/config"
	"millionx-backend/infrastructure/config"
	"millionx-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *sql.DB
	DomainConfig *domainconfig.DomainConfig
	Tunables     *config.TunablesProvider
	Metrics      *observability.Metrics
	SessionRepo  ports.SessionRepository
	UserRepo     ports.UserRepository
	AuthRepo     ports.AuthRepository
	AIGateway    ports.AIGateway
	AuthService  *services.AuthService
	Controller   *services.ExplorationController
	CommandBus   *commandbus.CommandBus
	QueryBus     *querybus.QueryBus
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideTunables,
	ProvideDB,
	ProvideSnapshotCodec,
	ProvideSessionRepository,
	ProvideUserRepository,
	ProvideAuthRepository,
	ProvideMetrics,
	ProvideAIGateway,
	ProvideMailer,
	ProvideEventPublisher,
	ProvideTokenIssuer,
	ProvideRateLimiter,
	ProvideAuthService,
	ProvideController,
	ProvideInMemoryCache,
	ProvideCommandBus,
	ProvideQueryBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
