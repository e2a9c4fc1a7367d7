package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/config"
	"ontology/domain/core/entities"
)

// BreakerConfig tunes the circuit breaker in front of changelog persistence.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used in production.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// ChangelogService records committed changes. Writes pass through a circuit breaker
// so that a failing changelog table stops costing a round trip per mutation.
type ChangelogService struct {
	repo    ports.ChangelogRepository
	breaker *gobreaker.CircuitBreaker
	config  *config.DomainConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewChangelogService creates a changelog service
func NewChangelogService(repo ports.ChangelogRepository, cfg *config.DomainConfig, breaker BreakerConfig, logger *zap.Logger) *ChangelogService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ChangelogService{repo: repo, config: cfg, logger: logger, now: time.Now}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "changelog",
		MaxRequests: breaker.MaxRequests,
		Interval:    breaker.Interval,
		Timeout:     breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breaker.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s
}

// Log stores entry and returns its id. Entries without a user, or from a user listed
// in ChangelogSkipUsers, are dropped and "" is returned.
func (s *ChangelogService) Log(ctx context.Context, entry entities.ChangeLogEntry) (string, error) {
	if entry.ModifiedBy == "" || s.config.SkipsChangelogFor(entry.ModifiedBy) {
		return "", nil
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.ModifiedAt.IsZero() {
		entry.ModifiedAt = s.now().UTC()
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.repo.Save(ctx, &entry)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("changelog unavailable: %w", err)
		}
		return "", fmt.Errorf("save changelog entry: %w", err)
	}
	return entry.ID, nil
}

// NodeChangeLogs returns the history of a node, newest first.
func (s *ChangelogService) NodeChangeLogs(ctx context.Context, nodeID string, limit, offset int) ([]*entities.ChangeLogEntry, error) {
	entries, err := s.repo.ListByNode(ctx, nodeID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list changelog of %s: %w", nodeID, err)
	}
	if entries == nil {
		entries = []*entities.ChangeLogEntry{}
	}
	return entries, nil
}
