package reconcile

import (
	"context"
	"fmt"
	"time"

	"entity-persister/core/metadata"
	"entity-persister/core/normalize"
	"entity-persister/core/subject"
	"entity-persister/core/value"

	"go.uber.org/zap"
)

// UnitOfWork tracks the subjects of one reconciliation pass. It is not safe
// for concurrent use.
type UnitOfWork struct {
	registry   *metadata.Registry
	cfg        Config
	log        *zap.Logger
	normalizer *normalize.Normalizer

	// subjects is kept in creation order.
	subjects []*subject.Subject
	byKey    map[string]*subject.Subject
	byRecord map[*value.Record]*subject.Subject
	walked   map[*value.Record]bool
}

// NewUnitOfWork creates an empty unit of work over registry.
func NewUnitOfWork(registry *metadata.Registry, cfg Config) *UnitOfWork {
	if cfg.LoadConcurrency <= 0 {
		cfg.LoadConcurrency = DefaultLoadConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	n := cfg.Normalizer
	if n == nil {
		n = normalize.New(nil)
	}
	return &UnitOfWork{
		registry:   registry,
		cfg:        cfg,
		log:        log,
		normalizer: n,
		byKey:      make(map[string]*subject.Subject),
		byRecord:   make(map[*value.Record]*subject.Subject),
		walked:     make(map[*value.Record]bool),
	}
}

// Subjects returns the tracked subjects in creation order.
func (u *UnitOfWork) Subjects() []*subject.Subject {
	out := make([]*subject.Subject, len(u.subjects))
	copy(out, u.subjects)
	return out
}

// Persist schedules rec, an entity of type entityName, for insert or update
// together with everything reachable from it through cascading relations.
func (u *UnitOfWork) Persist(entityName string, rec *value.Record) (*subject.Subject, error) {
	meta, err := u.entity(entityName, rec)
	if err != nil {
		return nil, err
	}
	s := u.track(meta, rec)
	s.CanBeInserted = true
	s.CanBeUpdated = true
	u.cascadePersist(s, rec)
	return s, nil
}

// Remove schedules rec for removal together with everything reachable from it
// through relations cascading removes.
func (u *UnitOfWork) Remove(entityName string, rec *value.Record) (*subject.Subject, error) {
	meta, err := u.entity(entityName, rec)
	if err != nil {
		return nil, err
	}
	s := u.track(meta, rec)
	s.MustBeRemoved = true
	u.cascadeRemove(s, rec, map[*value.Record]bool{})
	return s, nil
}

func (u *UnitOfWork) entity(name string, rec *value.Record) (*metadata.Entity, error) {
	meta := u.registry.Entity(name)
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	if rec == nil {
		return nil, fmt.Errorf("%s: entity is nil", name)
	}
	return meta, nil
}

// track returns the subject for rec, creating it on first sight. Records are
// matched by identity first, then by entity identifier.
func (u *UnitOfWork) track(meta *metadata.Entity, rec *value.Record) *subject.Subject {
	if s, ok := u.byRecord[rec]; ok {
		return s
	}
	id := meta.MixedIdentifier(rec)
	if id.IsDefined() {
		if s, ok := u.byKey[identityKey(meta, id)]; ok {
			if !s.HasDesiredEntity() {
				// Orphans have no snapshot yet while walking, so this cannot fail.
				_ = s.SetDesiredEntity(rec)
			}
			u.byRecord[rec] = s
			return s
		}
	}
	s := u.newSubject(meta, rec)
	u.byRecord[rec] = s
	if id.IsDefined() {
		u.byKey[identityKey(meta, id)] = s
	}
	return s
}

func (u *UnitOfWork) newSubject(meta *metadata.Entity, rec *value.Record) *subject.Subject {
	s := subject.New(meta, rec,
		subject.WithNormalizer(u.normalizer),
		subject.WithClock(u.cfg.Clock),
	)
	u.subjects = append(u.subjects, s)
	u.log.Debug("Tracking subject",
		zap.String("entity", meta.Name),
		zap.String("subject", s.ID.String()),
		zap.Stringer("id", s.Identifier()))
	return s
}

func (u *UnitOfWork) cascadePersist(s *subject.Subject, rec *value.Record) {
	if u.walked[rec] {
		return
	}
	u.walked[rec] = true

	for _, rel := range s.Metadata().Relations {
		if !rel.Cascade.Insert && !rel.Cascade.Update {
			continue
		}
		for _, related := range relatedObjects(rel, rec.Value(rel.PropertyName)) {
			rs := u.track(rel.TargetEntity(), related)
			if rel.Cascade.Insert {
				rs.CanBeInserted = true
			}
			if rel.Cascade.Update {
				rs.CanBeUpdated = true
			}
			u.cascadePersist(rs, related)
		}
	}
}

func (u *UnitOfWork) cascadeRemove(s *subject.Subject, rec *value.Record, seen map[*value.Record]bool) {
	if seen[rec] {
		return
	}
	seen[rec] = true

	for _, rel := range s.Metadata().Relations {
		if !rel.Cascade.Remove {
			continue
		}
		for _, related := range relatedObjects(rel, rec.Value(rel.PropertyName)) {
			rs := u.track(rel.TargetEntity(), related)
			rs.MustBeRemoved = true
			u.cascadeRemove(rs, related, seen)
		}
	}
}

// relatedObjects returns the nested objects held by a relation property.
// Bare identifiers are not entities to cascade to.
func relatedObjects(rel *metadata.Relation, v value.Value) []*value.Record {
	var out []*value.Record
	switch {
	case rel.IsToMany() && v.IsList():
		for _, it := range v.Items() {
			if it.IsObject() {
				out = append(out, it.Record())
			}
		}
	case !rel.IsToMany() && v.IsObject():
		out = append(out, v.Record())
	}
	return out
}

// Load attaches the stored row to every subject with an identifier, which
// computes their diffs, then derives junction changes, inverse-side relation
// updates and orphan removals.
func (u *UnitOfWork) Load(ctx context.Context, loader SnapshotLoader) error {
	cache := newSnapshotCache(loader)

	pending := u.Subjects()
	rows, err := cache.loadAll(ctx, pending, u.cfg.LoadConcurrency)
	if err != nil {
		return err
	}
	for i, s := range pending {
		if rows[i] == nil {
			continue
		}
		cols, rels, err := s.AttachDatabaseSnapshot(rows[i])
		if err != nil {
			return fmt.Errorf("diff %s %s: %w", s.Metadata().Name, s.Identifier(), err)
		}
		u.log.Debug("Attached snapshot",
			zap.String("entity", s.Metadata().Name),
			zap.String("subject", s.ID.String()),
			zap.Int("diff_columns", len(cols)),
			zap.Int("diff_relations", len(rels)))
	}

	// Orphans appended below are processed by the same loop.
	for i := 0; i < len(u.subjects); i++ {
		s := u.subjects[i]
		if err := u.planRelations(ctx, cache, loader, s); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnitOfWork) planRelations(ctx context.Context, cache *snapshotCache, loader SnapshotLoader, s *subject.Subject) error {
	for _, rel := range s.Metadata().Relations {
		var err error
		switch {
		case rel.IsManyToMany():
			err = u.planJunctions(ctx, loader, s, rel)
		case rel.IsInverseSide():
			err = u.planInverse(ctx, cache, loader, s, rel)
		case rel.IsOwningToOne():
			u.planOwning(s, rel)
		}
		if err != nil {
			return fmt.Errorf("%s.%s: %w", s.Metadata().Name, rel.PropertyName, err)
		}
	}
	return nil
}

// planOwning schedules the foreign key write of a stored subject pointing at
// an entity inserted in this unit of work.
func (u *UnitOfWork) planOwning(s *subject.Subject, rel *metadata.Relation) {
	if !s.HasDesiredEntity() || !s.HasDatabaseEntity() || s.MustBeRemoved {
		return
	}
	v := s.DesiredEntity().Value(rel.PropertyName)
	if !v.IsObject() {
		return
	}
	if rs, ok := u.byRecord[v.Record()]; ok && rs.MustBeInserted() && !rs.Identifier().IsDefined() {
		s.ScheduleRelationChange(rel)
	}
}

// desiredRelated splits the desired side of a relation into identifiers of
// existing rows and subjects inserted in this unit of work. ok is false when
// the relation property is undefined.
func (u *UnitOfWork) desiredRelated(s *subject.Subject, rel *metadata.Relation) (ids []value.Value, inserted []*subject.Subject, ok bool) {
	v := s.DesiredEntity().Value(rel.PropertyName)
	if !v.IsDefined() {
		return nil, nil, false
	}

	var items []value.Value
	switch {
	case rel.IsToMany() && v.IsList():
		items = v.Items()
	case v.IsNull():
	default:
		items = []value.Value{v}
	}

	target := rel.TargetEntity()
	for _, it := range items {
		if !it.IsObject() {
			if !it.IsNullish() {
				ids = append(ids, it)
			}
			continue
		}
		if id := target.MixedIdentifier(it.Record()); id.IsDefined() {
			ids = append(ids, id)
			continue
		}
		if rs, tracked := u.byRecord[it.Record()]; tracked && rs.MustBeInserted() {
			inserted = append(inserted, rs)
			continue
		}
		u.log.Debug("Skipping unsaved related entity without cascade insert",
			zap.String("entity", s.Metadata().Name),
			zap.String("relation", rel.PropertyName))
	}
	return ids, inserted, true
}

func (u *UnitOfWork) storedRelated(ctx context.Context, loader SnapshotLoader, s *subject.Subject, rel *metadata.Relation) ([]value.Value, error) {
	if !s.HasDatabaseEntity() {
		return nil, nil
	}
	return loader.LoadRelatedIDs(ctx, rel, s.Identifier())
}

func (u *UnitOfWork) planJunctions(ctx context.Context, loader SnapshotLoader, s *subject.Subject, rel *metadata.Relation) error {
	if s.MustBeRemoved {
		stored, err := u.storedRelated(ctx, loader, s, rel)
		if err != nil {
			return err
		}
		s.AddJunctionRemove(subject.Junction{Relation: rel, IDs: stored})
		return nil
	}
	if !s.HasDesiredEntity() {
		return nil
	}

	desired, inserted, ok := u.desiredRelated(s, rel)
	if !ok {
		return nil
	}
	stored, err := u.storedRelated(ctx, loader, s, rel)
	if err != nil {
		return err
	}

	s.AddJunctionInsert(subject.Junction{
		Relation: rel,
		IDs:      difference(desired, stored),
		Subjects: inserted,
	})
	s.AddJunctionRemove(subject.Junction{
		Relation: rel,
		IDs:      difference(stored, desired),
	})
	return nil
}

func (u *UnitOfWork) planInverse(ctx context.Context, cache *snapshotCache, loader SnapshotLoader, s *subject.Subject, rel *metadata.Relation) error {
	var desired []value.Value
	var inserted []*subject.Subject
	if !s.MustBeRemoved {
		if !s.HasDesiredEntity() {
			return nil
		}
		var ok bool
		desired, inserted, ok = u.desiredRelated(s, rel)
		if !ok {
			return nil
		}
	}

	stored, err := u.storedRelated(ctx, loader, s, rel)
	if err != nil {
		return err
	}

	if !s.MustBeRemoved {
		for _, id := range difference(desired, stored) {
			s.AddRelationUpdate(subject.RelationUpdate{Relation: rel, Related: id, Value: s})
		}
		for _, rs := range inserted {
			s.AddRelationUpdate(subject.RelationUpdate{Relation: rel, RelatedSubject: rs, Value: s})
		}
	}

	for _, id := range difference(stored, desired) {
		if !rel.Cascade.Remove {
			s.AddRelationUpdate(subject.RelationUpdate{Relation: rel, Related: id})
			continue
		}
		if err := u.removeOrphan(ctx, cache, rel.TargetEntity(), id); err != nil {
			return err
		}
	}
	return nil
}

// removeOrphan marks a stored row detached from its owner for removal.
func (u *UnitOfWork) removeOrphan(ctx context.Context, cache *snapshotCache, meta *metadata.Entity, id value.Value) error {
	if s, ok := u.byKey[identityKey(meta, id)]; ok {
		if !s.CanBeUpdated && !s.CanBeInserted {
			s.MustBeRemoved = true
		}
		return nil
	}

	rec, err := cache.load(ctx, meta, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	s := u.newSubject(meta, nil)
	if _, _, err := s.AttachDatabaseSnapshot(rec); err != nil {
		return err
	}
	s.MustBeRemoved = true
	u.byKey[identityKey(meta, id)] = s
	u.log.Debug("Removing orphan",
		zap.String("entity", meta.Name),
		zap.Stringer("id", id))
	return nil
}

// Validate checks every subject for conflicting operations. The first
// conflict is returned.
func (u *UnitOfWork) Validate() error {
	for _, s := range u.subjects {
		if err := s.Validate(); err != nil {
			u.log.Warn("Conflicting operations",
				zap.String("entity", s.Metadata().Name),
				zap.String("subject", s.ID.String()),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// difference returns the identifiers of a missing from b, keeping a's order.
func difference(a, b []value.Value) []value.Value {
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		seen[value.Key(id)] = struct{}{}
	}
	var out []value.Value
	for _, id := range a {
		key := value.Key(id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
	}
	return out
}
