package metadata

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RelationType is the cardinality of a relation.
type RelationType string

const (
	ManyToOne  RelationType = "many-to-one"
	OneToOne   RelationType = "one-to-one"
	OneToMany  RelationType = "one-to-many"
	ManyToMany RelationType = "many-to-many"
)

// Cascade lists the operations propagated through a relation.
type Cascade struct {
	Insert bool `yaml:"insert,omitempty" json:"insert,omitempty"`
	Update bool `yaml:"update,omitempty" json:"update,omitempty"`
	Remove bool `yaml:"remove,omitempty" json:"remove,omitempty"`
}

// UnmarshalYAML accepts either a mapping or the shorthand `cascade: true`.
func (c *Cascade) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var all bool
		if err := node.Decode(&all); err != nil {
			return fmt.Errorf("cascade: %w", err)
		}
		*c = Cascade{Insert: all, Update: all, Remove: all}
		return nil
	}
	type plain Cascade
	return node.Decode((*plain)(c))
}

// Relation describes a link from one entity to another.
type Relation struct {
	// PropertyName is the desired-entity field holding the related object,
	// a list of them, or a bare foreign key value.
	PropertyName string `yaml:"property" json:"property"`
	// Name is the database-facing name under which snapshots carry the
	// flattened foreign key. Defaults to JoinColumn, then PropertyName.
	Name     string       `yaml:"name,omitempty" json:"name,omitempty"`
	Type     RelationType `yaml:"type" json:"type"`
	IsOwning bool         `yaml:"owning,omitempty" json:"owning,omitempty"`
	Target   string       `yaml:"target" json:"target"`
	// InverseProperty names the relation on Target pointing back here.
	InverseProperty string `yaml:"inverse,omitempty" json:"inverse,omitempty"`

	JoinColumn            string `yaml:"join_column,omitempty" json:"join_column,omitempty"`
	JoinTable             string `yaml:"join_table,omitempty" json:"join_table,omitempty"`
	JoinTableSourceColumn string `yaml:"join_source,omitempty" json:"join_source,omitempty"`
	JoinTableTargetColumn string `yaml:"join_target,omitempty" json:"join_target,omitempty"`

	Cascade Cascade `yaml:"cascade,omitempty" json:"cascade,omitempty"`

	entity  *Entity
	target  *Entity
	inverse *Relation
}

func (r *Relation) IsManyToOne() bool  { return r.Type == ManyToOne }
func (r *Relation) IsOneToOne() bool   { return r.Type == OneToOne }
func (r *Relation) IsOneToMany() bool  { return r.Type == OneToMany }
func (r *Relation) IsManyToMany() bool { return r.Type == ManyToMany }

// IsToMany reports whether the relation property holds a list.
func (r *Relation) IsToMany() bool {
	return r.IsOneToMany() || r.IsManyToMany()
}

// IsOwningToOne reports whether this side physically stores the foreign key of
// a to-one relation.
func (r *Relation) IsOwningToOne() bool {
	return r.IsManyToOne() || (r.IsOneToOne() && r.IsOwning)
}

// IsInverseSide reports whether the relation's foreign key lives on the target:
// one-to-many and the non-owning side of one-to-one.
func (r *Relation) IsInverseSide() bool {
	return r.IsOneToMany() || (r.IsOneToOne() && !r.IsOwning)
}

// Entity returns the entity declaring the relation.
func (r *Relation) Entity() *Entity { return r.entity }

// TargetEntity returns the related entity's metadata.
func (r *Relation) TargetEntity() *Entity { return r.target }

// Inverse returns the relation on the target pointing back, or nil.
func (r *Relation) Inverse() *Relation { return r.inverse }

// SnapshotName returns the key under which database snapshots carry this
// relation's foreign key value.
func (r *Relation) SnapshotName() string {
	if r.Name != "" {
		return r.Name
	}
	if r.JoinColumn != "" {
		return r.JoinColumn
	}
	return r.PropertyName
}
