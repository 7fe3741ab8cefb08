package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"entity-persister/core/metadata"
	"entity-persister/core/normalize"
	"entity-persister/core/reconcile"
	"entity-persister/core/subject"
	"entity-persister/core/value"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrCompositeForeignKey is returned when a relation would have to store a
// multi-column key in a single join column.
var ErrCompositeForeignKey = errors.New("composite keys cannot be stored in a single join column")

// junctionBatchSize bounds the rows sent per join table insert statement.
const junctionBatchSize = 100

// Store reads snapshots from and writes plans to a relational database through
// GORM. It implements reconcile.SnapshotLoader, reconcile.Executor,
// reconcile.Transactor and the batch interfaces.
type Store struct {
	db         *gorm.DB
	normalizer *normalize.Normalizer
	now        func() time.Time
}

// NewStore creates a store on db. Values are bound and read back with n.
func NewStore(db *gorm.DB, n *normalize.Normalizer) *Store {
	if n == nil {
		n = normalize.New(nil)
	}
	return &Store{db: db, normalizer: n, now: time.Now}
}

func (s *Store) withDB(db *gorm.DB) *Store {
	return &Store{db: db, normalizer: s.normalizer, now: s.now}
}

// LoadSnapshot returns the stored row of entity identified by id, or nil when
// no row exists.
func (s *Store) LoadSnapshot(ctx context.Context, entity *metadata.Entity, id value.Value) (*value.Record, error) {
	where, err := keyConditions(entity, id)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := s.db.WithContext(ctx).Table(entity.TableName()).Where(where).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", entity.TableName(), err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return s.snapshot(entity, rows[0]), nil
}

// LoadRelatedIDs returns the identifiers related to owner through rel, read
// from the target table for inverse sides and from the join table for
// many-to-many relations.
func (s *Store) LoadRelatedIDs(ctx context.Context, rel *metadata.Relation, owner value.Value) ([]value.Value, error) {
	ownerKey, err := scalarKey(owner)
	if err != nil {
		return nil, err
	}

	var table, ownerCol, relatedCol string
	switch {
	case rel.IsManyToMany():
		if table, ownerCol, relatedCol, err = junctionColumns(rel); err != nil {
			return nil, err
		}
	case rel.IsInverseSide():
		target := rel.TargetEntity()
		pks := target.PrimaryColumns()
		if len(pks) != 1 {
			return nil, fmt.Errorf("relation %s: %w", rel.PropertyName, ErrCompositeForeignKey)
		}
		table, ownerCol, relatedCol = target.TableName(), rel.Inverse().JoinColumn, pks[0].Name()
	default:
		return nil, fmt.Errorf("relation %s stores its key on the owner", rel.PropertyName)
	}

	var rows []map[string]any
	err = s.db.WithContext(ctx).Table(table).Select(relatedCol).
		Where(map[string]any{ownerCol: ownerKey}).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", table, err)
	}

	ids := make([]value.Value, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, value.FromAny(plainScalar(row[relatedCol])))
	}
	return ids, nil
}

// Insert writes the subject's desired entity and returns the identifier the
// store generated for it, if any.
func (s *Store) Insert(ctx context.Context, sub *subject.Subject) (value.Value, error) {
	meta := sub.Metadata()
	rec := sub.DesiredEntity()
	now := s.now()

	var cols []string
	values := make(map[string]any)
	set := func(name string, v any) {
		if _, exists := values[name]; !exists {
			cols = append(cols, name)
		}
		values[name] = v
	}

	generated := value.Undefined()
	for _, col := range meta.Columns {
		if col.IsVirtual {
			continue
		}
		v, ok := col.ValueOf(rec)
		switch {
		case col.IsCreateDate, col.IsUpdateDate:
			stamp, err := s.bind(col, value.Scalar(now))
			if err != nil {
				return value.Undefined(), err
			}
			set(col.Name(), stamp)
		case col.IsVersion:
			set(col.Name(), 1)
		case col.IsDiscriminator && !ok:
			set(col.Name(), meta.Name)
		case col.IsPrimary && col.Generation == metadata.GenerationUUID && (!ok || v.IsNull()):
			id := uuid.NewString()
			generated = value.Scalar(id)
			set(col.Name(), id)
		case !ok:
		case col.IsPrimary && col.Generation == metadata.GenerationIncrement && v.IsNull():
		default:
			bound, err := s.bind(col, v)
			if err != nil {
				return value.Undefined(), err
			}
			set(col.Name(), bound)
		}
	}
	for _, rel := range meta.OwningToOneRelations() {
		fk, ok, err := foreignKey(rel, rec)
		if err != nil {
			return value.Undefined(), err
		}
		if ok {
			set(rel.JoinColumn, fk)
		}
	}

	tx := s.db.WithContext(ctx)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = tx.Statement.Quote(c)
		args[i] = values[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tx.Statement.Quote(meta.TableName()),
		strings.Join(quoted, ","),
		strings.TrimSuffix(strings.Repeat("?,", len(cols)), ","))

	res, err := tx.Statement.ConnPool.ExecContext(ctx, query, args...)
	if err != nil {
		return value.Undefined(), fmt.Errorf("failed to insert into %s: %w", meta.TableName(), err)
	}

	if generated.IsDefined() {
		return generated, nil
	}
	if pks := meta.PrimaryColumns(); len(pks) == 1 && pks[0].Generation == metadata.GenerationIncrement {
		if _, provided := values[pks[0].Name()]; !provided {
			id, err := res.LastInsertId()
			if err != nil {
				return value.Undefined(), fmt.Errorf("failed to read generated id of %s: %w", meta.TableName(), err)
			}
			return value.Scalar(id), nil
		}
	}
	return value.Undefined(), nil
}

// Update writes the changed columns and relations of the subject, stamps the
// update date and increments the version.
func (s *Store) Update(ctx context.Context, sub *subject.Subject) error {
	meta := sub.Metadata()
	rec := sub.DesiredEntity()
	tx := s.db.WithContext(ctx)

	sets := make(map[string]any)
	for _, col := range sub.DiffColumns() {
		v, _ := col.ValueOf(rec)
		bound, err := s.bind(col, v)
		if err != nil {
			return err
		}
		sets[col.Name()] = bound
	}
	for _, rel := range sub.DiffRelations() {
		fk, ok, err := foreignKey(rel, rec)
		if err != nil {
			return err
		}
		if ok {
			sets[rel.JoinColumn] = fk
		}
	}
	if len(sets) == 0 {
		return nil
	}
	for _, col := range meta.Columns {
		switch {
		case col.IsUpdateDate:
			stamp, err := s.bind(col, value.Scalar(s.now()))
			if err != nil {
				return err
			}
			sets[col.Name()] = stamp
		case col.IsVersion:
			sets[col.Name()] = gorm.Expr(tx.Statement.Quote(col.Name()) + " + 1")
		}
	}

	where, err := keyConditions(meta, sub.Identifier())
	if err != nil {
		return err
	}
	result := tx.Table(meta.TableName()).Where(where).Updates(sets)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s: %w", meta.TableName(), result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no rows updated in %s for %s", meta.TableName(), sub.Identifier())
	}
	return nil
}

// UpdateRelation points the foreign key of the related row at the owner, or
// clears it.
func (s *Store) UpdateRelation(ctx context.Context, u reconcile.RelationUpdate) error {
	target := u.Relation.TargetEntity()
	inverse := u.Relation.Inverse()
	if inverse == nil || inverse.JoinColumn == "" {
		return fmt.Errorf("relation %s has no owning inverse", u.Relation.PropertyName)
	}

	related := u.RelatedIdentifier()
	if !related.IsDefined() {
		return fmt.Errorf("related %s has no identifier", target.Name)
	}
	where, err := keyConditions(target, related)
	if err != nil {
		return err
	}

	var fk any
	if u.Value != nil {
		if fk, err = scalarKey(u.Value.Identifier()); err != nil {
			return err
		}
	}

	err = s.db.WithContext(ctx).Table(target.TableName()).Where(where).
		Update(inverse.JoinColumn, fk).Error
	if err != nil {
		return fmt.Errorf("failed to update %s.%s: %w", target.TableName(), inverse.JoinColumn, err)
	}
	return nil
}

// InsertJunction adds the join table rows of op.
func (s *Store) InsertJunction(ctx context.Context, op reconcile.JunctionOperation) error {
	return s.InsertJunctionBatch(ctx, []reconcile.JunctionOperation{op})
}

// InsertJunctionBatch adds the join table rows of every operation, one batched
// statement set per join table.
func (s *Store) InsertJunctionBatch(ctx context.Context, ops []reconcile.JunctionOperation) error {
	var tables []string
	rows := make(map[string][]map[string]any)
	for _, op := range ops {
		table, ownerCol, relatedCol, err := junctionColumns(op.Relation)
		if err != nil {
			return err
		}
		owner, err := scalarKey(op.Owner.Identifier())
		if err != nil {
			return err
		}
		for _, id := range op.Identifiers() {
			related, err := scalarKey(id)
			if err != nil {
				return err
			}
			if _, seen := rows[table]; !seen {
				tables = append(tables, table)
			}
			rows[table] = append(rows[table], map[string]any{ownerCol: owner, relatedCol: related})
		}
	}

	tx := s.db.WithContext(ctx)
	for _, table := range tables {
		if err := tx.Table(table).CreateInBatches(rows[table], junctionBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// RemoveJunction deletes the join table rows of op.
func (s *Store) RemoveJunction(ctx context.Context, op reconcile.JunctionOperation) error {
	ids := op.Identifiers()
	if len(ids) == 0 {
		return nil
	}
	table, ownerCol, relatedCol, err := junctionColumns(op.Relation)
	if err != nil {
		return err
	}
	owner, err := scalarKey(op.Owner.Identifier())
	if err != nil {
		return err
	}
	related, err := scalarKeys(ids)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Table(table).
		Where(ownerCol+" = ?", owner).
		Where(relatedCol+" IN ?", related).
		Delete(nil).Error
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// Remove deletes the subject's row.
func (s *Store) Remove(ctx context.Context, sub *subject.Subject) error {
	meta := sub.Metadata()
	where, err := keyConditions(meta, sub.Identifier())
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Table(meta.TableName()).Where(where).Delete(nil).Error; err != nil {
		return fmt.Errorf("failed to delete from %s: %w", meta.TableName(), err)
	}
	return nil
}

// RemoveBatch deletes the rows of subjects. Consecutive subjects of the same
// single-key entity share one statement so the removal order across entities
// is kept.
func (s *Store) RemoveBatch(ctx context.Context, subjects []*subject.Subject) error {
	for start := 0; start < len(subjects); {
		meta := subjects[start].Metadata()
		end := start + 1
		for end < len(subjects) && subjects[end].Metadata() == meta {
			end++
		}
		run := subjects[start:end]
		start = end

		if meta.HasCompositeKey() || len(run) == 1 {
			for _, sub := range run {
				if err := s.Remove(ctx, sub); err != nil {
					return err
				}
			}
			continue
		}

		ids := make([]value.Value, len(run))
		for i, sub := range run {
			ids[i] = sub.Identifier()
		}
		keys, err := scalarKeys(ids)
		if err != nil {
			return err
		}
		pk := meta.PrimaryColumns()[0].Name()
		if err := s.db.WithContext(ctx).Table(meta.TableName()).Where(pk+" IN ?", keys).Delete(nil).Error; err != nil {
			return fmt.Errorf("failed to delete from %s: %w", meta.TableName(), err)
		}
	}
	return nil
}

// WithinTransaction runs fn with a store bound to a database transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, exec reconcile.Executor) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, s.withDB(tx))
	})
}
