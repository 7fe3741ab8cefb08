package subject

import (
	"entity-persister/core/metadata"
	"entity-persister/core/normalize"
	"entity-persister/core/value"
)

// buildDiffColumns returns, in declaration order, the columns whose desired
// value differs from the stored one. Columns undefined on desired and
// system-managed columns are skipped, as are foreign key columns whose
// relation property holds an object: the relation diff reports those.
func buildDiffColumns(meta *metadata.Entity, n *normalize.Normalizer, desired, database *value.Record) ([]*metadata.Column, error) {
	if database == nil {
		return nil, nil
	}

	var diff []*metadata.Column
	for _, col := range meta.Columns {
		entityValue, ok := col.ValueOf(desired)
		if !ok {
			continue
		}
		if col.IsSystemManaged() {
			continue
		}
		if rel := meta.RelationForColumn(col); rel != nil && desired.Value(rel.PropertyName).IsObject() {
			continue
		}

		databaseValue, _ := col.ValueOf(database)
		entityValue, databaseValue, err := n.Pair(col, entityValue, databaseValue)
		if err != nil {
			return nil, err
		}
		if !value.Equal(entityValue, databaseValue) {
			diff = append(diff, col)
		}
	}
	return diff, nil
}

// buildDiffRelations returns, in declaration order, the owning to-one
// relations whose referenced identifier changed.
func buildDiffRelations(meta *metadata.Entity, desired, database *value.Record) []*metadata.Relation {
	if database == nil {
		return nil
	}

	var diff []*metadata.Relation
	for _, rel := range meta.Relations {
		if !rel.IsOwningToOne() {
			continue
		}

		desiredID := relatedIdentifier(rel, desired.Value(rel.PropertyName))
		if !desiredID.IsDefined() {
			continue
		}
		databaseID := relatedIdentifier(rel, database.Value(rel.SnapshotName()))
		if desiredID.IsNullish() && databaseID.IsNullish() {
			continue
		}
		if !value.Equal(desiredID, databaseID) {
			diff = append(diff, rel)
		}
	}
	return diff
}

// relatedIdentifier extracts the mixed identifier from a related object, or
// returns v itself when it is a bare foreign key value.
func relatedIdentifier(rel *metadata.Relation, v value.Value) value.Value {
	if v.IsObject() && rel.TargetEntity() != nil {
		return rel.TargetEntity().MixedIdentifier(v.Record())
	}
	return v
}
