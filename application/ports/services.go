package ports

import (
	"context"
	"time"

	"ontology/domain/core/entities"
	"ontology/domain/core/inheritance"
	"ontology/domain/core/validators"
	"ontology/domain/core/valueobjects"
	"ontology/domain/events"
)

// CollectionNormalizer canonicalizes relationship groupings.
type CollectionNormalizer interface {
	Normalize(collections valueobjects.Collections) valueobjects.Collections
}

// DuplicateValidator reports repeated references inside named collections.
type DuplicateValidator interface {
	Validate(set entities.RelationshipSet) validators.DuplicateReport
}

// CircularDetector reports ids that are both generalization and specialization.
type CircularDetector interface {
	Detect(generalizations, specializations valueobjects.Collections) []string
}

// InheritanceResolver loads the inheritable state of a parent node.
type InheritanceResolver interface {
	// ParentNodeData returns nil, nil when the parent does not exist.
	ParentNodeData(ctx context.Context, parentID string) (*inheritance.ParentData, error)
}

// ChangelogService records committed changes.
type ChangelogService interface {
	// Log records entry and returns its id; "" when the entry was skipped.
	Log(ctx context.Context, entry entities.ChangeLogEntry) (string, error)

	// NodeChangeLogs returns the change history of a node, newest first.
	NodeChangeLogs(ctx context.Context, nodeID string, limit, offset int) ([]*entities.ChangeLogEntry, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache stores serialized documents for read paths.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Metrics records service-level measurements.
type Metrics interface {
	RecordOperation(ctx context.Context, operation string, duration time.Duration, err error)
	RecordTransactionAttempts(ctx context.Context, operation string, attempts int)
}

// Tracer wraps an operation in a trace subsegment.
type Tracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
}
