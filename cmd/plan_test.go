package cmd

import (
	"context"
	"testing"

	"entity-persister/core/metadata"
	"entity-persister/core/metadata/metadatatest"
	"entity-persister/core/value"
	"entity-persister/feature/persistence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowLoader serves a single stored row per entity.
type rowLoader struct {
	rows map[string]*value.Record
}

func (l *rowLoader) LoadSnapshot(ctx context.Context, entity *metadata.Entity, id value.Value) (*value.Record, error) {
	rec, ok := l.rows[entity.Name]
	if !ok || !value.Equal(entity.MixedIdentifier(rec), id) {
		return nil, nil
	}
	return rec, nil
}

func (l *rowLoader) LoadRelatedIDs(ctx context.Context, rel *metadata.Relation, owner value.Value) ([]value.Value, error) {
	return nil, nil
}

func TestLoadRemoveTarget(t *testing.T) {
	reg := metadatatest.BlogRegistry(t)
	stored := value.RecordOf("id", int64(4), "title", "kept")
	loader := &rowLoader{rows: map[string]*value.Record{"post": stored}}
	ctx := context.Background()

	rec, err := loadRemoveTarget(ctx, loader, reg.Entity("post"), "4")
	require.NoError(t, err)
	assert.Same(t, stored, rec)

	_, err = loadRemoveTarget(ctx, loader, reg.Entity("post"), "5")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = loadRemoveTarget(ctx, loader, reg.Entity("stock_item"), "not-json")
	assert.Error(t, err)
}
