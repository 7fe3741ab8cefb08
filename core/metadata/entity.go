package metadata

import "entity-persister/core/value"

// Entity describes one entity type.
type Entity struct {
	Name      string      `yaml:"name" json:"name"`
	Table     string      `yaml:"table,omitempty" json:"table,omitempty"`
	Columns   []*Column   `yaml:"columns" json:"columns"`
	Relations []*Relation `yaml:"relations,omitempty" json:"relations,omitempty"`
}

// TableName returns Table, defaulting to Name.
func (e *Entity) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return e.Name
}

// Column returns the non-embedded column with the given property name, or nil.
func (e *Entity) Column(propertyName string) *Column {
	for _, c := range e.Columns {
		if c.PropertyName == propertyName && !c.IsInEmbedded {
			return c
		}
	}
	return nil
}

// Relation returns the relation with the given property name, or nil.
func (e *Entity) Relation(propertyName string) *Relation {
	for _, r := range e.Relations {
		if r.PropertyName == propertyName {
			return r
		}
	}
	return nil
}

// PrimaryColumns returns the primary key columns in declaration order.
func (e *Entity) PrimaryColumns() []*Column {
	var cols []*Column
	for _, c := range e.Columns {
		if c.IsPrimary {
			cols = append(cols, c)
		}
	}
	return cols
}

// HasCompositeKey reports whether the primary key spans several columns.
func (e *Entity) HasCompositeKey() bool {
	return len(e.PrimaryColumns()) > 1
}

// PrimaryKeyMap extracts the primary key of rec as a property name to value
// record. It returns nil when any key value is missing or null.
func (e *Entity) PrimaryKeyMap(rec *value.Record) *value.Record {
	if rec == nil {
		return nil
	}
	pk := value.NewRecord()
	for _, c := range e.PrimaryColumns() {
		v, ok := c.ValueOf(rec)
		if !ok || v.IsNull() {
			return nil
		}
		pk.Set(c.PropertyName, v)
	}
	if pk.Len() == 0 {
		return nil
	}
	return pk
}

// MixedIdentifier returns the scalar primary key value for single-column keys,
// a Composite for multi-column keys, and Undefined when rec carries no complete
// key.
func (e *Entity) MixedIdentifier(rec *value.Record) value.Value {
	pk := e.PrimaryKeyMap(rec)
	if pk == nil {
		return value.Undefined()
	}
	if pk.Len() == 1 {
		return pk.Value(pk.Keys()[0])
	}
	return value.Composite(pk)
}

// IdentifierRecord expands a mixed identifier back into a primary key record.
func (e *Entity) IdentifierRecord(id value.Value) *value.Record {
	pks := e.PrimaryColumns()
	if id.Kind() == value.KindComposite || id.Kind() == value.KindObject {
		return id.Record().Clone()
	}
	if len(pks) != 1 || id.IsNullish() {
		return nil
	}
	return value.RecordOf(pks[0].PropertyName, id)
}

// RelationForColumn returns the owning to-one relation whose foreign key col
// stores, or nil.
func (e *Entity) RelationForColumn(col *Column) *Relation {
	if col.IsInEmbedded {
		return nil
	}
	if col.Relation != "" {
		if r := e.Relation(col.Relation); r != nil && r.IsOwningToOne() {
			return r
		}
		return nil
	}
	for _, r := range e.Relations {
		if r.IsOwningToOne() && r.JoinColumn != "" && r.JoinColumn == col.Name() {
			return r
		}
	}
	return nil
}

// OwningToOneRelations returns the many-to-one and owning one-to-one relations.
func (e *Entity) OwningToOneRelations() []*Relation {
	var rels []*Relation
	for _, r := range e.Relations {
		if r.IsOwningToOne() {
			rels = append(rels, r)
		}
	}
	return rels
}

// TreeParent returns the owning to-one relation through which the entity
// references a row of its own type, or nil when the entity is not a tree.
func (e *Entity) TreeParent() *Relation {
	for _, r := range e.Relations {
		if r.IsOwningToOne() && r.TargetEntity() == e {
			return r
		}
	}
	return nil
}
