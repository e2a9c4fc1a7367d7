// Package di assembles the node service and its HTTP surface from configuration.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ontology/application/ports"
	"ontology/application/services"
	domainconfig "ontology/domain/config"
	"ontology/infrastructure/cache"
	"ontology/infrastructure/config"
	"ontology/infrastructure/messaging/eventbridge"
	"ontology/infrastructure/persistence/dynamodb"
	"ontology/infrastructure/persistence/memory"
	"ontology/infrastructure/persistence/retry"
	"ontology/interfaces/http/rest"
	"ontology/interfaces/http/rest/handlers"
	"ontology/interfaces/http/rest/middleware"
	"ontology/pkg/auth"
	pkgerrors "ontology/pkg/errors"
	"ontology/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// ProvideDomainConfig selects the business limits for the environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(cfg.Environment)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

func retryConfig(dcfg *domainconfig.DomainConfig) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = dcfg.MaxTransactionAttempts
	rc.BaseDelay = dcfg.TransactionBaseDelay
	rc.MaxDelay = dcfg.TransactionMaxDelay
	return rc
}

// ProvideDocumentStore creates the node store for the configured backend
func ProvideDocumentStore(
	cfg *config.Config,
	client *awsdynamodb.Client,
	dcfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) ports.DocumentStore {
	if cfg.StoreBackend == config.StoreBackendMemory {
		logger.Warn("using the in-memory node store; data is lost on restart")
		return memory.NewStore(logger, memory.WithRetryConfig(retryConfig(dcfg)))
	}
	return dynamodb.NewNodeStore(client, cfg.TableName, cfg.IndexName, logger,
		dynamodb.WithRetryConfig(retryConfig(dcfg)),
		dynamodb.WithReadFanOut(dcfg.NeighbourReadFanOut),
	)
}

// ProvideChangelogRepository creates the changelog repository for the configured backend
func ProvideChangelogRepository(cfg *config.Config, client *awsdynamodb.Client) ports.ChangelogRepository {
	if cfg.StoreBackend == config.StoreBackendMemory {
		return memory.NewChangelogRepository()
	}
	return dynamodb.NewChangelogRepository(client, cfg.ChangelogTableName, cfg.ChangelogRetention)
}

// ProvideChangelogService creates the changelog service
func ProvideChangelogService(
	repo ports.ChangelogRepository,
	dcfg *domainconfig.DomainConfig,
	logger *zap.Logger,
) ports.ChangelogService {
	return services.NewChangelogService(repo, dcfg, services.DefaultBreakerConfig(), logger)
}

// ProvideInheritanceResolver creates the parent lookup used by node mutations
func ProvideInheritanceResolver(store ports.DocumentStore) ports.InheritanceResolver {
	return services.NewStoreInheritanceResolver(store)
}

// ProvideRedisClient connects to Redis when REDIS_URL is set. Without it the
// returned client is nil.
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (redis.UniversalClient, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache creates the node read cache, or nil when caching is disabled
func ProvideCache(ctx context.Context, cfg *config.Config, client redis.UniversalClient) ports.Cache {
	if !cfg.EnableCache {
		return nil
	}
	if client != nil {
		return cache.NewRedisCacheWithClient(client, cfg.CachePrefix)
	}
	return cache.NewInMemoryCache(ctx, time.Minute)
}

// ProvideEventPublisher creates the EventBridge publisher, or nil when no bus is
// configured
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return nil
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
}

// ProvideMetrics creates the CloudWatch metrics recorder, or nil when disabled
func ProvideMetrics(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.Metrics {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetrics(cfg.MetricsNamespace, awscloudwatch.NewFromConfig(awsCfg), logger)
}

// ProvideTracer creates the X-Ray tracer, or nil when disabled
func ProvideTracer(cfg *config.Config) ports.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer("ontology")
}

// ProvideNodeService creates the node service with every optional collaborator
// that is configured
func ProvideNodeService(
	store ports.DocumentStore,
	changelog ports.ChangelogService,
	resolver ports.InheritanceResolver,
	dcfg *domainconfig.DomainConfig,
	publisher ports.EventPublisher,
	nodeCache ports.Cache,
	metrics ports.Metrics,
	tracer ports.Tracer,
	logger *zap.Logger,
) *services.NodeService {
	opts := []services.NodeServiceOption{services.WithDomainConfig(dcfg)}
	if publisher != nil {
		opts = append(opts, services.WithEventPublisher(publisher))
	}
	if nodeCache != nil {
		opts = append(opts, services.WithCache(nodeCache))
	}
	if metrics != nil {
		opts = append(opts, services.WithMetrics(metrics))
	}
	if tracer != nil {
		opts = append(opts, services.WithTracer(tracer))
	}
	return services.NewNodeService(store, changelog, resolver, logger, opts...)
}

// ProvideJWTValidator creates the bearer token validator, or nil when no secret is
// configured
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.JWTSecret,
		Issuer:        cfg.JWTIssuer,
	})
}

// ProvideRateLimiter creates the per-user limiter, shared through Redis when a
// client is available
func ProvideRateLimiter(cfg *config.Config, client redis.UniversalClient) auth.RateLimiter {
	if cfg.RateLimitPerMinute <= 0 {
		return nil
	}
	if client != nil {
		return auth.NewRedisRateLimiter(client, cfg.RateLimitPerMinute, time.Minute, "user")
	}
	return auth.NewSlidingWindowLimiter(cfg.RateLimitPerMinute, time.Minute)
}

// ProvideNodeHandler creates the node HTTP handler
func ProvideNodeHandler(svc *services.NodeService, cfg *config.Config, logger *zap.Logger) *handlers.NodeHandler {
	return handlers.NewNodeHandler(svc, pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment()), logger)
}

// ProvideReadiness checks that the node table is reachable
func ProvideReadiness(cfg *config.Config, client *awsdynamodb.Client) rest.ReadinessCheck {
	if cfg.StoreBackend == config.StoreBackendMemory {
		return nil
	}
	return func(ctx context.Context) error {
		_, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(cfg.TableName)})
		return err
	}
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	nodes *handlers.NodeHandler,
	cfg *config.Config,
	validator *auth.JWTValidator,
	limiter auth.RateLimiter,
	readiness rest.ReadinessCheck,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(nodes, rest.RouterConfig{
		AllowedOrigins: cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Auth: middleware.AuthConfig{
			Validator:    validator,
			TrustGateway: cfg.TrustGateway,
			UserLimiter:  limiter,
		},
		Readiness: readiness,
	}, logger)
}
