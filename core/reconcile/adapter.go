package reconcile

import (
	"context"

	"entity-persister/core/metadata"
	"entity-persister/core/subject"
	"entity-persister/core/value"
)

// SnapshotLoader reads the current state of stored rows.
type SnapshotLoader interface {
	// LoadSnapshot returns the stored row of entity identified by id, keyed by
	// property name, embedded columns nested under their embedded property and
	// owning relation foreign keys flattened under Relation.SnapshotName.
	// It returns nil, nil when no row exists.
	LoadSnapshot(ctx context.Context, entity *metadata.Entity, id value.Value) (*value.Record, error)

	// LoadRelatedIDs returns the identifiers of the rows related to owner through
	// rel. It is called for many-to-many relations and for inverse-side
	// relations (one-to-many and the non-owning side of one-to-one).
	LoadRelatedIDs(ctx context.Context, rel *metadata.Relation, owner value.Value) ([]value.Value, error)
}

// Executor applies planned operations to storage.
type Executor interface {
	// Insert stores the subject's desired entity and returns the generated
	// identifier, or Undefined when the identifier was provided by the caller.
	Insert(ctx context.Context, s *subject.Subject) (value.Value, error)

	// Update writes the subject's changed columns and relations.
	Update(ctx context.Context, s *subject.Subject) error

	// UpdateRelation writes an inverse-side foreign key.
	UpdateRelation(ctx context.Context, u RelationUpdate) error

	// InsertJunction adds join table rows.
	InsertJunction(ctx context.Context, op JunctionOperation) error

	// RemoveJunction deletes join table rows.
	RemoveJunction(ctx context.Context, op JunctionOperation) error

	// Remove deletes the subject's stored row.
	Remove(ctx context.Context, s *subject.Subject) error
}

// Transactor is implemented by executors able to run a plan atomically.
type Transactor interface {
	// WithinTransaction calls fn with an executor bound to a transaction that
	// is committed when fn returns nil and rolled back otherwise.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, exec Executor) error) error
}

// BatchRemover is implemented by executors able to delete many rows at once.
type BatchRemover interface {
	RemoveBatch(ctx context.Context, subjects []*subject.Subject) error
}

// BatchJunctionInserter is implemented by executors able to insert the join
// table rows of several operations at once.
type BatchJunctionInserter interface {
	InsertJunctionBatch(ctx context.Context, ops []JunctionOperation) error
}
