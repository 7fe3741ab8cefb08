package subject

import (
	"time"

	"entity-persister/core/metadata"
	"entity-persister/core/normalize"
	"entity-persister/core/value"

	"github.com/google/uuid"
)

// RelationUpdate is an inverse-side relation value written from the
// non-owning side: the foreign key of the related row is set to point at
// Value, or cleared when Value is nil.
type RelationUpdate struct {
	Relation *metadata.Relation
	// Related identifies the related row.
	Related value.Value
	// RelatedSubject replaces Related for rows inserted in the same unit of
	// work.
	RelatedSubject *Subject
	Value          *Subject
}

// RelatedIdentifier returns the identifier of the related row, Undefined while
// RelatedSubject has not been inserted.
func (u RelationUpdate) RelatedIdentifier() value.Value {
	if u.RelatedSubject != nil {
		return u.RelatedSubject.Identifier()
	}
	return u.Related
}

// Junction lists many-to-many join table rows to insert or remove. Related
// subjects that are inserted in the same unit of work are resolved to their
// identifiers once generated.
type Junction struct {
	Relation *metadata.Relation
	IDs      []value.Value
	Subjects []*Subject
}

// Identifiers returns the related identifiers, including those of Subjects
// known at call time.
func (j Junction) Identifiers() []value.Value {
	ids := make([]value.Value, 0, len(j.IDs)+len(j.Subjects))
	ids = append(ids, j.IDs...)
	for _, s := range j.Subjects {
		if id := s.Identifier(); id.IsDefined() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Option configures a Subject.
type Option func(*Subject)

// WithNormalizer sets the value normalizer used by the diff engine.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Subject) {
		s.normalizer = n
	}
}

// WithClock overrides the clock stamping CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Subject) {
		s.now = now
	}
}

// Subject is the unit-of-work record for one entity instance.
type Subject struct {
	// ID identifies the subject in logs and plans.
	ID uuid.UUID

	// CanBeInserted and CanBeUpdated mark the operation as permitted, either
	// requested directly or reached through a cascading relation.
	CanBeInserted bool
	CanBeUpdated  bool
	// MustBeRemoved marks the subject for removal.
	MustBeRemoved bool

	// NewlyGeneratedID is the identifier returned by the insert.
	NewlyGeneratedID value.Value
	// ParentGeneratedID and TreeLevel place subjects of self-referencing
	// entities; they are set before the insert executes.
	ParentGeneratedID value.Value
	TreeLevel         *int

	// CreatedAt orders inserts of subjects created in the same unit of work.
	CreatedAt time.Time

	meta       *metadata.Entity
	desired    *value.Record
	database   *value.Record
	normalizer *normalize.Normalizer
	now        func() time.Time

	diffColumns     []*metadata.Column
	diffRelations   []*metadata.Relation
	relationUpdates []RelationUpdate
	junctionInserts []Junction
	junctionRemoves []Junction
}

// New creates a subject for meta. desired may be nil for subjects that only
// represent a stored row.
func New(meta *metadata.Entity, desired *value.Record, opts ...Option) *Subject {
	s := &Subject{
		ID:      uuid.New(),
		meta:    meta,
		desired: desired,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New(nil)
	}
	s.CreatedAt = s.now()
	return s
}

func (s *Subject) Metadata() *metadata.Entity { return s.meta }

func (s *Subject) HasDesiredEntity() bool { return s.desired != nil }

func (s *Subject) HasDatabaseEntity() bool { return s.database != nil }

// DesiredEntity returns the desired entity. It panics with
// *UnresolvedEntityAccessError when none was set.
func (s *Subject) DesiredEntity() *value.Record {
	if s.desired == nil {
		panic(&UnresolvedEntityAccessError{Entity: s.meta.Name, Side: "desired"})
	}
	return s.desired
}

// DatabaseEntity returns the database snapshot. It panics with
// *UnresolvedEntityAccessError when none was attached.
func (s *Subject) DatabaseEntity() *value.Record {
	if s.database == nil {
		panic(&UnresolvedEntityAccessError{Entity: s.meta.Name, Side: "database"})
	}
	return s.database
}

// SetDesiredEntity replaces the desired entity and recomputes the diffs when a
// snapshot is attached.
func (s *Subject) SetDesiredEntity(rec *value.Record) error {
	if rec != nil && s.database != nil {
		cols, rels, err := s.diff(rec, s.database)
		if err != nil {
			return err
		}
		s.diffColumns, s.diffRelations = cols, rels
	} else {
		s.diffColumns, s.diffRelations = nil, nil
	}
	s.desired = rec
	return nil
}

// AttachDatabaseSnapshot stores the row as currently stored and, when a
// desired entity is present, computes and returns the column and relation
// diffs. On error the subject is left unchanged. A nil snapshot detaches the
// current one.
func (s *Subject) AttachDatabaseSnapshot(rec *value.Record) ([]*metadata.Column, []*metadata.Relation, error) {
	if rec == nil || s.desired == nil {
		s.database = rec
		s.diffColumns, s.diffRelations = nil, nil
		return nil, nil, nil
	}
	cols, rels, err := s.diff(s.desired, rec)
	if err != nil {
		return nil, nil, err
	}
	s.database = rec
	s.diffColumns, s.diffRelations = cols, rels
	return cols, rels, nil
}

func (s *Subject) diff(desired, database *value.Record) ([]*metadata.Column, []*metadata.Relation, error) {
	cols, err := buildDiffColumns(s.meta, s.normalizer, desired, database)
	if err != nil {
		return nil, nil, err
	}
	return cols, buildDiffRelations(s.meta, desired, database), nil
}

func (s *Subject) DiffColumns() []*metadata.Column { return s.diffColumns }

func (s *Subject) DiffRelations() []*metadata.Relation { return s.diffRelations }

// ScheduleRelationChange adds rel to the relation diff. The planner uses it
// for owning relations pointing at an entity inserted in the same unit of
// work, whose identifier is unknown while diffing.
func (s *Subject) ScheduleRelationChange(rel *metadata.Relation) {
	for _, r := range s.diffRelations {
		if r == rel {
			return
		}
	}
	s.diffRelations = append(s.diffRelations, rel)
}

func (s *Subject) RelationUpdates() []RelationUpdate { return s.relationUpdates }

func (s *Subject) AddRelationUpdate(u RelationUpdate) {
	s.relationUpdates = append(s.relationUpdates, u)
}

func (s *Subject) JunctionInserts() []Junction { return s.junctionInserts }

func (s *Subject) JunctionRemoves() []Junction { return s.junctionRemoves }

func (s *Subject) AddJunctionInsert(j Junction) {
	if len(j.IDs)+len(j.Subjects) > 0 {
		s.junctionInserts = append(s.junctionInserts, j)
	}
}

func (s *Subject) AddJunctionRemove(j Junction) {
	if len(j.IDs)+len(j.Subjects) > 0 {
		s.junctionRemoves = append(s.junctionRemoves, j)
	}
}

// MustBeInserted reports an insert: permitted and not stored yet.
func (s *Subject) MustBeInserted() bool {
	return s.CanBeInserted && !s.HasDatabaseEntity()
}

// MustBeUpdated reports an update: permitted and with column or relation
// changes.
func (s *Subject) MustBeUpdated() bool {
	return s.CanBeUpdated && (len(s.diffColumns) > 0 || len(s.diffRelations) > 0)
}

func (s *Subject) HasRelationUpdates() bool { return len(s.relationUpdates) > 0 }

// Identifier returns the mixed identifier of the desired entity, falling back
// to the database snapshot and then to the generated identifier.
func (s *Subject) Identifier() value.Value {
	if id := s.meta.MixedIdentifier(s.desired); id.IsDefined() {
		return id
	}
	if id := s.meta.MixedIdentifier(s.database); id.IsDefined() {
		return id
	}
	if s.NewlyGeneratedID.IsDefined() && !s.NewlyGeneratedID.IsNull() {
		return s.NewlyGeneratedID
	}
	return value.Undefined()
}

// SetNewlyGeneratedID records the identifier produced by an insert and writes
// it into the desired entity's primary key so related subjects referencing the
// same record resolve it.
func (s *Subject) SetNewlyGeneratedID(id value.Value) {
	s.NewlyGeneratedID = id
	if s.desired == nil || id.IsNullish() {
		return
	}
	pks := s.meta.PrimaryColumns()
	if id.Kind() == value.KindComposite || id.Kind() == value.KindObject {
		for _, pk := range pks {
			if v, ok := id.Record().Get(pk.PropertyName); ok {
				pk.SetValue(s.desired, v)
			}
		}
		return
	}
	if len(pks) == 1 {
		pks[0].SetValue(s.desired, id)
	}
}
