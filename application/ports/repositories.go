package ports

import (
	"context"

	"ontology/domain/core/entities"
	"ontology/infrastructure/persistence/abstractions"
)

// DocumentStore is the transactional store holding node documents.
// Implementations retry a transaction body on commit conflicts, so bodies must be free
// of side effects outside the transaction.
type DocumentStore interface {
	// RunTransaction executes fn atomically. All reads must happen before any write.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error

	// Get reads a committed document; nil when missing.
	Get(ctx context.Context, id string) (*entities.Node, error)

	// Query returns the documents matching criteria, sorted and paged.
	Query(ctx context.Context, criteria abstractions.QueryCriteria) ([]*entities.Node, error)

	// Count returns how many documents match the filters of criteria.
	Count(ctx context.Context, criteria abstractions.QueryCriteria) (int, error)

	// NewID allocates an identifier for a document that does not exist yet.
	NewID() string
}

// Transaction is the view of the store inside RunTransaction.
type Transaction interface {
	// Get reads a document; nil when missing. Fails once the transaction has written.
	Get(ctx context.Context, id string) (*entities.Node, error)

	// GetAll reads several documents; missing ids are absent from the map.
	GetAll(ctx context.Context, ids []string) (map[string]*entities.Node, error)

	// Set buffers a full document write.
	Set(node *entities.Node) error

	// Update buffers a partial write of an existing document.
	Update(id string, patch entities.NodePatch) error
}

// ChangelogRepository persists changelog entries.
type ChangelogRepository interface {
	Save(ctx context.Context, entry *entities.ChangeLogEntry) error

	// ListByNode returns entries of a node, newest first.
	ListByNode(ctx context.Context, nodeID string, limit, offset int) ([]*entities.ChangeLogEntry, error)
}
