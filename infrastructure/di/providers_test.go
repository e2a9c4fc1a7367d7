package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ontology/infrastructure/cache"
	"ontology/infrastructure/config"
	"ontology/infrastructure/persistence/memory"
	"ontology/pkg/auth"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:        "development",
		StoreBackend:       config.StoreBackendMemory,
		AWSRegion:          "us-west-2",
		LogLevel:           "error",
		JWTSecret:          "secret",
		JWTIssuer:          "ontology",
		RateLimitPerMinute: 10,
		CORSOrigins:        []string{"*"},
	}
}

func TestInitializeContainer_MemoryBackend(t *testing.T) {
	// Arrange
	cfg := memoryConfig()

	// Act
	container, cleanup, err := InitializeContainer(context.Background(), cfg)

	// Assert
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, container.NodeService)

	rec := httptest.NewRecorder()
	container.Router.Setup().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	container.Router.Setup().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/nodes", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInitializeContainer_RejectsBadLogLevel(t *testing.T) {
	cfg := memoryConfig()
	cfg.LogLevel = "loud"

	_, _, err := InitializeContainer(context.Background(), cfg)

	assert.ErrorContains(t, err, "LOG_LEVEL")
}

func TestProvideDocumentStore_MemoryBackend(t *testing.T) {
	cfg := memoryConfig()

	store := ProvideDocumentStore(cfg, nil, ProvideDomainConfig(cfg), zap.NewNop())

	assert.IsType(t, &memory.Store{}, store)
	assert.IsType(t, &memory.ChangelogRepository{}, ProvideChangelogRepository(cfg, nil))
}

func TestProvideCacheAndLimiter_FollowRedisAvailability(t *testing.T) {
	cfg := memoryConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Nil(t, ProvideCache(ctx, cfg, nil))

	cfg.EnableCache = true
	assert.IsType(t, &cache.InMemoryCache{}, ProvideCache(ctx, cfg, nil))
	assert.IsType(t, &auth.SlidingWindowLimiter{}, ProvideRateLimiter(cfg, nil))

	srv := miniredis.RunT(t)
	cfg.RedisURL = "redis://" + srv.Addr()
	client, cleanup, err := ProvideRedisClient(ctx, cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &cache.RedisCache{}, ProvideCache(ctx, cfg, client))
	assert.IsType(t, &auth.RedisRateLimiter{}, ProvideRateLimiter(cfg, client))

	cfg.RateLimitPerMinute = 0
	assert.Nil(t, ProvideRateLimiter(cfg, client))
}

func TestOptionalProvidersAreNilWhenDisabled(t *testing.T) {
	cfg := memoryConfig()

	assert.Nil(t, ProvideEventPublisher(cfg, awsConfigForTest(), zap.NewNop()))
	assert.Nil(t, ProvideMetrics(cfg, awsConfigForTest(), zap.NewNop()))
	assert.Nil(t, ProvideTracer(cfg))
	assert.Nil(t, ProvideReadiness(cfg, nil))

	cfg.JWTSecret = ""
	validator, err := ProvideJWTValidator(cfg)
	require.NoError(t, err)
	assert.Nil(t, validator)
}

func awsConfigForTest() aws.Config {
	return aws.Config{Region: "us-west-2"}
}
