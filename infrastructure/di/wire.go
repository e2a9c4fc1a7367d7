//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"ontology/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideDocumentStore,
	ProvideChangelogRepository,
	ProvideChangelogService,
	ProvideInheritanceResolver,
	ProvideRedisClient,
	ProvideCache,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideTracer,
	ProvideNodeService,
	ProvideJWTValidator,
	ProvideRateLimiter,
	ProvideNodeHandler,
	ProvideReadiness,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}

