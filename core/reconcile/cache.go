package reconcile

import (
	"context"
	"fmt"
	"sync"

	"entity-persister/core/metadata"
	"entity-persister/core/subject"
	"entity-persister/core/value"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// snapshotCache memoizes stored rows for one unit of work.
type snapshotCache struct {
	loader SnapshotLoader

	mu   sync.RWMutex
	rows map[string]*value.Record
	sf   singleflight.Group
}

func newSnapshotCache(loader SnapshotLoader) *snapshotCache {
	return &snapshotCache{
		loader: loader,
		rows:   make(map[string]*value.Record),
	}
}

// load returns a copy of the stored row. Concurrent requests for the same row
// share one loader call.
func (c *snapshotCache) load(ctx context.Context, meta *metadata.Entity, id value.Value) (*value.Record, error) {
	key := identityKey(meta, id)

	// Fast path: row already fetched (nil rows are cached too)
	c.mu.RLock()
	rec, exists := c.rows[key]
	c.mu.RUnlock()
	if exists {
		return rec.Clone(), nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		rec, exists := c.rows[key]
		c.mu.RUnlock()
		if exists {
			return rec, nil
		}

		rec, err := c.loader.LoadSnapshot(ctx, meta, id)
		if err != nil {
			return nil, fmt.Errorf("load %s %s: %w", meta.Name, id, err)
		}

		c.mu.Lock()
		c.rows[key] = rec
		c.mu.Unlock()
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*value.Record).Clone(), nil
}

// loadAll fetches the rows of subjects concurrently. The result is indexed
// like subjects; subjects without identifier get nil.
func (c *snapshotCache) loadAll(ctx context.Context, subjects []*subject.Subject, limit int) ([]*value.Record, error) {
	rows := make([]*value.Record, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, s := range subjects {
		i, s := i, s
		id := s.Identifier()
		if !id.IsDefined() {
			continue
		}
		g.Go(func() error {
			rec, err := c.load(gctx, s.Metadata(), id)
			if err != nil {
				return err
			}
			rows[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func identityKey(meta *metadata.Entity, id value.Value) string {
	return meta.Name + "|" + value.Key(id)
}
