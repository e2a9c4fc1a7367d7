package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/config"
	"ontology/domain/core/entities"
	"ontology/domain/core/validators"
	"ontology/domain/events"
	pkgerrors "ontology/pkg/errors"
)

// NodeService owns every mutation of the node graph. Each mutation runs in a single
// store transaction that reads the target node and all of its neighbours, so that
// relationships stay bidirectional. Changelog entries, events and cache invalidation
// happen after commit and never fail the operation.
type NodeService struct {
	store     ports.DocumentStore
	changelog ports.ChangelogService
	resolver  ports.InheritanceResolver
	logger    *zap.Logger

	normalizer ports.CollectionNormalizer
	duplicates ports.DuplicateValidator
	circular   ports.CircularDetector

	publisher ports.EventPublisher
	cache     ports.Cache
	metrics   ports.Metrics
	tracer    ports.Tracer
	config    *config.DomainConfig
	now       func() time.Time
}

// NodeServiceOption configures a NodeService
type NodeServiceOption func(*NodeService)

// WithNormalizer replaces the collection normalizer
func WithNormalizer(n ports.CollectionNormalizer) NodeServiceOption {
	return func(s *NodeService) { s.normalizer = n }
}

// WithDuplicateValidator replaces the duplicate reference validator
func WithDuplicateValidator(v ports.DuplicateValidator) NodeServiceOption {
	return func(s *NodeService) { s.duplicates = v }
}

// WithCircularDetector replaces the circular reference detector
func WithCircularDetector(d ports.CircularDetector) NodeServiceOption {
	return func(s *NodeService) { s.circular = d }
}

// WithEventPublisher publishes domain events after each committed mutation
func WithEventPublisher(p ports.EventPublisher) NodeServiceOption {
	return func(s *NodeService) { s.publisher = p }
}

// WithCache enables the node read cache
func WithCache(c ports.Cache) NodeServiceOption {
	return func(s *NodeService) { s.cache = c }
}

// WithMetrics records operation latency and transaction attempts
func WithMetrics(m ports.Metrics) NodeServiceOption {
	return func(s *NodeService) { s.metrics = m }
}

// WithTracer wraps every operation in a trace subsegment
func WithTracer(t ports.Tracer) NodeServiceOption {
	return func(s *NodeService) { s.tracer = t }
}

// WithDomainConfig sets the business limits
func WithDomainConfig(cfg *config.DomainConfig) NodeServiceOption {
	return func(s *NodeService) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) NodeServiceOption {
	return func(s *NodeService) { s.now = now }
}

// NewNodeService creates a new node service
func NewNodeService(
	store ports.DocumentStore,
	changelog ports.ChangelogService,
	resolver ports.InheritanceResolver,
	logger *zap.Logger,
	opts ...NodeServiceOption,
) *NodeService {
	s := &NodeService{
		store:      store,
		changelog:  changelog,
		resolver:   resolver,
		logger:     logger,
		normalizer: validators.NewCollectionNormalizer(),
		duplicates: validators.NewDuplicateValidator(),
		circular:   validators.NewCircularDetector(),
		config:     config.DefaultDomainConfig(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// GetNode returns a node by id. Deleted nodes are returned too.
func (s *NodeService) GetNode(ctx context.Context, id string) (*entities.Node, error) {
	var node *entities.Node
	err := s.observe(ctx, "GetNode", func(ctx context.Context) error {
		if cached := s.cachedNode(ctx, id); cached != nil {
			node = cached
			return nil
		}
		n, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if n == nil {
			return nodeNotFound(id)
		}
		s.cacheNode(ctx, n)
		node = n
		return nil
	})
	return node, err
}

// GetNodeChangeLogs returns the change history of a node, newest first.
func (s *NodeService) GetNodeChangeLogs(ctx context.Context, nodeID string, limit, offset int) ([]*entities.ChangeLogEntry, error) {
	if offset < 0 {
		return nil, pkgerrors.NewValidationError("offset must not be negative")
	}
	if limit <= 0 {
		limit = s.config.ChangelogPageSize
	}
	limit = s.config.ClampListLimit(limit)

	var entries []*entities.ChangeLogEntry
	err := s.observe(ctx, "GetNodeChangeLogs", func(ctx context.Context) error {
		var err error
		entries, err = s.changelog.NodeChangeLogs(ctx, nodeID, limit, offset)
		return err
	})
	return entries, err
}

func nodeNotFound(id string) error {
	return pkgerrors.NewNotFoundError("Node").WithDetails(map[string]interface{}{"id": id})
}

// observe runs an operation inside the optional trace and records its latency.
func (s *NodeService) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := s.now()
	var err error
	if s.tracer != nil {
		err = s.tracer.TraceFunction(ctx, "NodeService."+op, fn)
	} else {
		err = fn(ctx)
	}
	if s.metrics != nil {
		s.metrics.RecordOperation(ctx, op, s.now().Sub(start), err)
	}
	return err
}

// transact runs body in a store transaction and reports how many times it ran.
func (s *NodeService) transact(ctx context.Context, op string, body func(ctx context.Context, tx ports.Transaction) error) error {
	attempts := 0
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx ports.Transaction) error {
		attempts++
		return body(ctx, tx)
	})
	if s.metrics != nil {
		s.metrics.RecordTransactionAttempts(ctx, op, attempts)
	}
	if attempts > 1 {
		s.logger.Debug("transaction retried",
			zap.String("operation", op),
			zap.Int("attempts", attempts),
		)
	}
	return err
}

// recordChange writes a changelog entry. Failures are logged and swallowed.
func (s *NodeService) recordChange(ctx context.Context, entry entities.ChangeLogEntry, node *entities.Node) {
	if s.changelog == nil {
		return
	}
	if s.config.RecordFullNodeInLog && node != nil {
		entry.FullNode = node.Clone()
	}
	if _, err := s.changelog.Log(ctx, entry); err != nil {
		s.logger.Warn("failed to record changelog entry",
			zap.String("nodeID", entry.NodeID),
			zap.String("changeType", string(entry.ChangeType)),
			zap.Error(err),
		)
	}
}

// publish sends a domain event. Failures are logged and swallowed.
func (s *NodeService) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("nodeID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}

func nodeCacheKey(id string) string {
	return "node:" + id
}

func (s *NodeService) cachedNode(ctx context.Context, id string) *entities.Node {
	if s.cache == nil {
		return nil
	}
	data, ok, err := s.cache.Get(ctx, nodeCacheKey(id))
	if err != nil {
		s.logger.Warn("node cache read failed", zap.String("nodeID", id), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var node entities.Node
	if err := json.Unmarshal(data, &node); err != nil {
		s.logger.Warn("discarding undecodable cached node", zap.String("nodeID", id), zap.Error(err))
		return nil
	}
	node.EnsureDefaults()
	return &node
}

func (s *NodeService) cacheNode(ctx context.Context, node *entities.Node) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(node)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, nodeCacheKey(node.ID), data, s.config.NodeCacheTTL); err != nil {
		s.logger.Warn("node cache write failed", zap.String("nodeID", node.ID), zap.Error(err))
	}
}

// invalidate drops cached copies of every node a mutation touched.
func (s *NodeService) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, nodeCacheKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("node cache invalidation failed", zap.Strings("nodeIDs", ids), zap.Error(err))
	}
}
