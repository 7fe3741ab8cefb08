package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"entity-persister/core/metadata"
	"entity-persister/core/value"
)

// snapshot converts a database row into a record keyed by property name.
// Embedded columns are nested under their embedded property, JSON columns are
// parsed and date or time columns are brought to their canonical form in the
// column's storage zone. Owning relation foreign keys are also exposed under
// Relation.SnapshotName.
func (s *Store) snapshot(meta *metadata.Entity, row map[string]any) *value.Record {
	rec := value.NewRecord()
	for _, col := range meta.Columns {
		if col.IsVirtual {
			continue
		}
		raw, ok := row[col.Name()]
		if !ok {
			continue
		}
		col.SetValue(rec, s.decode(col, plainScalar(raw)))
	}
	for _, rel := range meta.OwningToOneRelations() {
		if raw, ok := row[rel.JoinColumn]; ok {
			rec.Set(rel.SnapshotName(), value.FromAny(plainScalar(raw)))
		}
	}
	return rec
}

func (s *Store) decode(col *metadata.Column, raw any) value.Value {
	if raw == nil {
		return value.Null()
	}
	switch col.SemanticType() {
	case metadata.ColumnJSON:
		if str, ok := raw.(string); ok {
			if parsed, err := value.ParseJSON([]byte(str)); err == nil {
				return parsed
			}
		}
	case metadata.ColumnDate, metadata.ColumnDateTime, metadata.ColumnTime:
		if v, err := s.normalizer.Stored(col, value.Scalar(raw)); err == nil {
			return v
		}
	}
	return value.Scalar(raw)
}

// bind converts a desired value into a statement argument.
func (s *Store) bind(col *metadata.Column, v value.Value) (any, error) {
	if v.IsNullish() {
		return nil, nil
	}
	if col.SemanticType() == metadata.ColumnPlain {
		if v.IsObject() || v.IsList() {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.PropertyName, err)
			}
			return string(b), nil
		}
		return v.Any(), nil
	}
	canonical, err := s.normalizer.Canonical(col, v)
	if err != nil {
		return nil, err
	}
	return canonical.Any(), nil
}

// plainScalar unwraps driver byte slices and valuers into plain Go values.
func plainScalar(raw any) any {
	switch v := raw.(type) {
	case []byte:
		return string(v)
	case sql.RawBytes:
		return string(v)
	case sql.NullString:
		if !v.Valid {
			return nil
		}
		return v.String
	case sql.NullInt64:
		if !v.Valid {
			return nil
		}
		return v.Int64
	case sql.NullFloat64:
		if !v.Valid {
			return nil
		}
		return v.Float64
	case sql.NullTime:
		if !v.Valid {
			return nil
		}
		return v.Time
	default:
		return raw
	}
}

// keyConditions maps the primary key columns of meta to the values of id.
func keyConditions(meta *metadata.Entity, id value.Value) (map[string]any, error) {
	rec := meta.IdentifierRecord(id)
	if rec == nil {
		return nil, fmt.Errorf("%s: invalid identifier %s", meta.Name, id)
	}
	where := make(map[string]any)
	for _, pk := range meta.PrimaryColumns() {
		v, ok := rec.Get(pk.PropertyName)
		if !ok || v.IsNullish() {
			return nil, fmt.Errorf("%s: identifier %s lacks %s", meta.Name, id, pk.PropertyName)
		}
		where[pk.Name()] = v.Any()
	}
	return where, nil
}

// scalarKey returns the plain value of a single-column identifier.
func scalarKey(id value.Value) (any, error) {
	switch {
	case id.IsScalar():
		return id.Raw(), nil
	case id.Kind() == value.KindComposite:
		return nil, ErrCompositeForeignKey
	default:
		return nil, fmt.Errorf("invalid identifier %s", id)
	}
}

func scalarKeys(ids []value.Value) ([]any, error) {
	out := make([]any, len(ids))
	for i, id := range ids {
		k, err := scalarKey(id)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}

// foreignKey resolves the join column value of an owning to-one relation from
// rec. ok is false when rec does not carry the relation.
func foreignKey(rel *metadata.Relation, rec *value.Record) (fk any, ok bool, err error) {
	v := rec.Value(rel.PropertyName)
	switch {
	case !v.IsDefined():
		return nil, false, nil
	case v.IsNull():
		return nil, true, nil
	case v.IsObject():
		id := rel.TargetEntity().MixedIdentifier(v.Record())
		if !id.IsDefined() {
			return nil, false, nil
		}
		fk, err = scalarKey(id)
	default:
		fk, err = scalarKey(v)
	}
	if err != nil {
		return nil, false, fmt.Errorf("relation %s: %w", rel.PropertyName, err)
	}
	return fk, true, nil
}

// junctionColumns returns the join table of a many-to-many relation with the
// column pointing at the relation's owner first. Non-owning sides reuse the
// inverse's join table with the columns swapped.
func junctionColumns(rel *metadata.Relation) (table, ownerCol, relatedCol string, err error) {
	if rel.JoinTable != "" {
		return rel.JoinTable, rel.JoinTableSourceColumn, rel.JoinTableTargetColumn, nil
	}
	if inv := rel.Inverse(); inv != nil && inv.JoinTable != "" {
		return inv.JoinTable, inv.JoinTableTargetColumn, inv.JoinTableSourceColumn, nil
	}
	return "", "", "", fmt.Errorf("relation %s has no join table", rel.PropertyName)
}
