package metadata

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the loaded entity metadata keyed by entity name.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Entity returns the entity with the given name, or nil.
func (r *Registry) Entity(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[name]
}

// Entities returns all registered entities sorted by name.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load validates the given entities, resolves relation targets and inverse
// sides, and replaces the registry content. On error the registry is left
// unchanged.
func (r *Registry) Load(entities []*Entity) error {
	byName := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		if e.Name == "" {
			return fmt.Errorf("entity without a name")
		}
		if _, dup := byName[e.Name]; dup {
			return fmt.Errorf("duplicate entity %q", e.Name)
		}
		byName[e.Name] = e
	}

	for _, e := range entities {
		if err := prepareEntity(e); err != nil {
			return fmt.Errorf("entity %s: %w", e.Name, err)
		}
	}
	for _, e := range entities {
		if err := resolveRelations(e, byName); err != nil {
			return fmt.Errorf("entity %s: %w", e.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = byName
	return nil
}

func prepareEntity(e *Entity) error {
	if len(e.PrimaryColumns()) == 0 {
		return fmt.Errorf("no primary column")
	}
	seen := make(map[string]bool, len(e.Columns))
	for _, c := range e.Columns {
		if c.PropertyName == "" {
			return fmt.Errorf("column without a property name")
		}
		if c.EmbeddedProperty != "" {
			c.IsInEmbedded = true
		}
		if c.IsInEmbedded && c.EmbeddedProperty == "" {
			return fmt.Errorf("column %s: embedded column without embedded_in", c.PropertyName)
		}
		if seen[c.Name()] {
			return fmt.Errorf("duplicate column %s", c.Name())
		}
		seen[c.Name()] = true
	}
	for _, rel := range e.Relations {
		if rel.PropertyName == "" {
			return fmt.Errorf("relation without a property name")
		}
		switch rel.Type {
		case ManyToOne:
			rel.IsOwning = true
		case OneToOne, OneToMany:
		case ManyToMany:
			if rel.IsOwning && (rel.JoinTable == "" || rel.JoinTableSourceColumn == "" || rel.JoinTableTargetColumn == "") {
				return fmt.Errorf("relation %s: owning many-to-many needs join_table, join_source and join_target", rel.PropertyName)
			}
		default:
			return fmt.Errorf("relation %s: unknown type %q", rel.PropertyName, rel.Type)
		}
		if rel.IsOwningToOne() && rel.JoinColumn == "" {
			rel.JoinColumn = rel.PropertyName + "_id"
		}
		rel.entity = e
	}
	return nil
}

func resolveRelations(e *Entity, byName map[string]*Entity) error {
	for _, rel := range e.Relations {
		target, ok := byName[rel.Target]
		if !ok {
			return fmt.Errorf("relation %s: unknown target %q", rel.PropertyName, rel.Target)
		}
		rel.target = target
		if rel.InverseProperty != "" {
			inv := target.Relation(rel.InverseProperty)
			if inv == nil {
				return fmt.Errorf("relation %s: target %s has no relation %q", rel.PropertyName, target.Name, rel.InverseProperty)
			}
			rel.inverse = inv
		}
		if rel.IsInverseSide() && (rel.inverse == nil || !rel.inverse.IsOwningToOne()) {
			return fmt.Errorf("relation %s: inverse side needs an owning inverse relation", rel.PropertyName)
		}
		if rel.IsManyToMany() && !rel.IsOwning {
			if rel.inverse == nil || !rel.inverse.IsOwning {
				return fmt.Errorf("relation %s: non-owning many-to-many needs an owning inverse", rel.PropertyName)
			}
		}
	}
	return nil
}
