// Package memory is an in-process document store with optimistic transactions.
// It backs local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	"ontology/infrastructure/persistence/abstractions"
	"ontology/infrastructure/persistence/retry"
	pkgerrors "ontology/pkg/errors"
)

type document struct {
	abstractions.VersionedEntity
	node *entities.Node
}

// Store keeps node documents in memory. Every document carries a version that
// transactions validate at commit.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]document
	retry  retry.Config
	logger *zap.Logger
	newID  func() string

	// beforeCommit runs after a transaction body and before its commit is validated.
	beforeCommit func(attempt int)
}

// Option configures a Store
type Option func(*Store)

// WithRetryConfig sets the commit retry policy
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Store) { s.retry = cfg }
}

// WithIDGenerator replaces the uuid generator
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithBeforeCommit installs a hook that runs between a transaction body and its commit.
func WithBeforeCommit(fn func(attempt int)) Option {
	return func(s *Store) { s.beforeCommit = fn }
}

// NewStore creates an empty store
func NewStore(logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		docs:   make(map[string]document),
		retry:  retry.DefaultConfig(),
		logger: logger,
		newID:  valueobjects.NewNodeID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.DocumentStore = (*Store)(nil)

// Put writes a document outside any transaction, bumping its version.
func (s *Store) Put(node *entities.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(node.Clone())
}

func (s *Store) putLocked(node *entities.Node) {
	doc := s.docs[node.ID]
	doc.Version++
	doc.node = node
	s.docs[node.ID] = doc
}

// NewID implements ports.DocumentStore
func (s *Store) NewID() string {
	return s.newID()
}

// Get implements ports.DocumentStore
func (s *Store) Get(ctx context.Context, id string) (*entities.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return doc.node.Clone(), nil
}

// Query implements ports.DocumentStore
func (s *Store) Query(ctx context.Context, criteria abstractions.QueryCriteria) ([]*entities.Node, error) {
	matched, err := s.match(ctx, criteria)
	if err != nil {
		return nil, err
	}
	sorts := criteria.Sort
	if len(sorts) == 0 {
		sorts = []abstractions.SortOption{{Field: "id", Order: abstractions.SortAscending}}
	}
	abstractions.SortStrings(matched, sorts,
		func(n *entities.Node, field string) string {
			v, _ := n.QueryField(field)
			return fmt.Sprint(v)
		},
		func(n *entities.Node) string { return n.ID },
	)
	start, end := abstractions.Window(len(matched), criteria.Offset, criteria.Limit)
	return matched[start:end], nil
}

// Count implements ports.DocumentStore
func (s *Store) Count(ctx context.Context, criteria abstractions.QueryCriteria) (int, error) {
	matched, err := s.match(ctx, criteria.WithoutPaging())
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *Store) match(ctx context.Context, criteria abstractions.QueryCriteria) ([]*entities.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := criteria.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.Node, 0)
	for _, doc := range s.docs {
		n := doc.node
		if criteria.Matches(func(field string) (interface{}, bool) { return n.QueryField(field) }) {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

// RunTransaction implements ports.DocumentStore
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ports.Transaction) error) error {
	return retry.Do(ctx, s.retry, func(attempt int) error {
		tx := &transaction{store: s, reads: make(map[string]int64)}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if s.beforeCommit != nil {
			s.beforeCommit(attempt)
		}
		err := tx.commit()
		if err != nil && pkgerrors.IsConcurrentModification(err) {
			s.logger.Debug("memory transaction conflict", zap.Int("attempt", attempt))
		}
		return err
	})
}
