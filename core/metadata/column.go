package metadata

import "entity-persister/core/value"

// ColumnType is the semantic type of a column, driving value normalization.
type ColumnType string

const (
	ColumnPlain          ColumnType = "plain"
	ColumnDate           ColumnType = "date"
	ColumnTime           ColumnType = "time"
	ColumnDateTime       ColumnType = "datetime"
	ColumnJSON           ColumnType = "json"
	ColumnDelimitedArray ColumnType = "simple-array"
)

// Generation is the primary key generation strategy.
type Generation string

const (
	GenerationNone      Generation = ""
	GenerationIncrement Generation = "increment"
	GenerationUUID      Generation = "uuid"
)

// Column describes one persisted (or virtual) property of an entity.
type Column struct {
	PropertyName string     `yaml:"property" json:"property"`
	DatabaseName string     `yaml:"column,omitempty" json:"column,omitempty"`
	Type         ColumnType `yaml:"type,omitempty" json:"type,omitempty"`
	IsPrimary    bool       `yaml:"primary,omitempty" json:"primary,omitempty"`
	Generation   Generation `yaml:"generated,omitempty" json:"generated,omitempty"`

	IsVirtual           bool `yaml:"virtual,omitempty" json:"virtual,omitempty"`
	IsParentID          bool `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	IsDiscriminator     bool `yaml:"discriminator,omitempty" json:"discriminator,omitempty"`
	IsUpdateDate        bool `yaml:"update_date,omitempty" json:"update_date,omitempty"`
	IsCreateDate        bool `yaml:"create_date,omitempty" json:"create_date,omitempty"`
	IsVersion           bool `yaml:"version,omitempty" json:"version,omitempty"`
	LoadInLocalTimezone bool `yaml:"local_timezone,omitempty" json:"local_timezone,omitempty"`

	// IsInEmbedded marks a column of a nested value object stored under
	// EmbeddedProperty on the entity.
	IsInEmbedded     bool   `yaml:"in_embedded,omitempty" json:"in_embedded,omitempty"`
	EmbeddedProperty string `yaml:"embedded_in,omitempty" json:"embedded_in,omitempty"`

	// Relation names the owning to-one relation whose foreign key this column
	// stores, if any.
	Relation string `yaml:"relation,omitempty" json:"relation,omitempty"`
}

// Name returns the database column name, defaulting to the property name.
// Embedded columns default to "<embedded>_<property>".
func (c *Column) Name() string {
	if c.DatabaseName != "" {
		return c.DatabaseName
	}
	if c.IsInEmbedded {
		return c.EmbeddedProperty + "_" + c.PropertyName
	}
	return c.PropertyName
}

// SemanticType returns Type, defaulting to ColumnPlain.
func (c *Column) SemanticType() ColumnType {
	if c.Type == "" {
		return ColumnPlain
	}
	return c.Type
}

// IsGenerated reports whether the database or the persister generates the value.
func (c *Column) IsGenerated() bool {
	return c.Generation != GenerationNone
}

// IsSystemManaged reports whether the column is maintained by the persistence
// layer and must never be diffed by value.
func (c *Column) IsSystemManaged() bool {
	return c.IsVirtual || c.IsParentID || c.IsDiscriminator ||
		c.IsUpdateDate || c.IsVersion || c.IsCreateDate
}

// ValueOf resolves the column's value on rec. ok is false when the value is
// undefined, including when the embedded object itself is absent.
func (c *Column) ValueOf(rec *value.Record) (v value.Value, ok bool) {
	if rec == nil {
		return value.Undefined(), false
	}
	if c.IsInEmbedded {
		embedded, found := rec.Get(c.EmbeddedProperty)
		if !found || !embedded.IsObject() {
			return value.Undefined(), false
		}
		v, _ = embedded.Record().Get(c.PropertyName)
		return v, v.IsDefined()
	}
	v, _ = rec.Get(c.PropertyName)
	return v, v.IsDefined()
}

// SetValue stores v on rec, creating the embedded object when needed.
func (c *Column) SetValue(rec *value.Record, v value.Value) {
	if !c.IsInEmbedded {
		rec.Set(c.PropertyName, v)
		return
	}
	embedded, found := rec.Get(c.EmbeddedProperty)
	if !found || !embedded.IsObject() {
		embedded = value.Object(value.NewRecord())
		rec.Set(c.EmbeddedProperty, embedded)
	}
	embedded.Record().Set(c.PropertyName, v)
}
