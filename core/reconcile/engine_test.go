package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"entity-persister/core/metadata"
	"entity-persister/core/metadata/metadatatest"
	"entity-persister/core/normalize"
	"entity-persister/core/subject"
	"entity-persister/core/value"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader serves snapshots and related ids from memory.
type fakeLoader struct {
	mu      sync.Mutex
	rows    map[string]*value.Record
	related map[string][]value.Value
	calls   map[string]int
	delay   time.Duration
	err     error
	active  int32
	peak    int32
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		rows:    make(map[string]*value.Record),
		related: make(map[string][]value.Value),
		calls:   make(map[string]int),
	}
}

func (f *fakeLoader) put(meta *metadata.Entity, rec *value.Record) {
	f.rows[identityKey(meta, meta.MixedIdentifier(rec))] = rec
}

func (f *fakeLoader) relate(rel *metadata.Relation, owner any, ids ...any) {
	vals := make([]value.Value, len(ids))
	for i, id := range ids {
		vals[i] = value.FromAny(id)
	}
	f.related[relatedKey(rel, value.FromAny(owner))] = vals
}

func relatedKey(rel *metadata.Relation, owner value.Value) string {
	return rel.Entity().Name + "." + rel.PropertyName + "|" + value.Key(owner)
}

func (f *fakeLoader) LoadSnapshot(ctx context.Context, entity *metadata.Entity, id value.Value) (*value.Record, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	key := identityKey(entity, id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.rows[key]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (f *fakeLoader) LoadRelatedIDs(ctx context.Context, rel *metadata.Relation, owner value.Value) ([]value.Value, error) {
	return f.related[relatedKey(rel, owner)], nil
}

func newUnitOfWork(t *testing.T) (*UnitOfWork, *metadata.Registry) {
	t.Helper()
	reg := metadatatest.BlogRegistry(t)
	return NewUnitOfWork(reg, Config{Normalizer: normalize.New(time.UTC)}), reg
}

func TestPersist_UnknownEntity(t *testing.T) {
	uow, _ := newUnitOfWork(t)
	_, err := uow.Persist("missing", value.NewRecord())
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}

func TestPersist_CascadesThroughEnabledRelations(t *testing.T) {
	uow, _ := newUnitOfWork(t)

	post := value.RecordOf(
		"title", "Hello",
		"author", map[string]any{"id": 1, "name": "not cascaded"},
		"details", map[string]any{"summary": "short"},
		"comments", []any{map[string]any{"body": "first"}, map[string]any{"body": "second"}},
		"categories", []any{map[string]any{"name": "new"}, 3},
	)
	root, err := uow.Persist("post", post)
	require.NoError(t, err)

	subjects := uow.Subjects()
	require.Len(t, subjects, 5, "post, details, two comments, one category")
	assert.Same(t, root, subjects[0])
	assert.True(t, root.CanBeInserted)
	assert.True(t, root.CanBeUpdated)

	details := subjects[1]
	assert.Equal(t, "post_details", details.Metadata().Name)
	assert.True(t, details.CanBeInserted)
	assert.True(t, details.CanBeUpdated)

	category := subjects[4]
	assert.Equal(t, "category", category.Metadata().Name)
	assert.True(t, category.CanBeInserted)
	assert.False(t, category.CanBeUpdated, "categories cascade insert only")
}

func TestPersist_SameEntityTrackedOnce(t *testing.T) {
	uow, _ := newUnitOfWork(t)

	shared := value.RecordOf("id", 9, "body", "same")
	_, err := uow.Persist("post", value.RecordOf("id", 1, "comments", []any{shared}))
	require.NoError(t, err)
	_, err = uow.Persist("comment", value.RecordOf("id", int64(9), "body", "copy"))
	require.NoError(t, err)

	assert.Len(t, uow.Subjects(), 2)
}

func TestRemove_CascadesRemove(t *testing.T) {
	uow, _ := newUnitOfWork(t)

	_, err := uow.Remove("post", value.RecordOf("id", 1, "comments", []any{map[string]any{"id": 4}}, "details", map[string]any{"id": 2}))
	require.NoError(t, err)

	subjects := uow.Subjects()
	require.Len(t, subjects, 2, "details relation does not cascade removes")
	assert.True(t, subjects[0].MustBeRemoved)
	assert.True(t, subjects[1].MustBeRemoved)
	assert.Equal(t, "comment", subjects[1].Metadata().Name)
}

func TestLoad_AttachesSnapshotsAndDiffs(t *testing.T) {
	uow, reg := newUnitOfWork(t)
	loader := newFakeLoader()
	loader.put(reg.Entity("post"), value.RecordOf(
		"id", 1,
		"title", "Hello",
		"counters", map[string]any{"likes": 1, "comments": 5, "favorites": 3},
	))

	root, err := uow.Persist("post", value.RecordOf(
		"id", 1,
		"counters", map[string]any{"likes": 1, "comments": 5, "favorites": 2},
	))
	require.NoError(t, err)
	require.NoError(t, uow.Load(context.Background(), loader))

	assert.True(t, root.HasDatabaseEntity())
	assert.False(t, root.MustBeInserted())
	assert.True(t, root.MustBeUpdated())
	require.Len(t, root.DiffColumns(), 1)
	assert.Equal(t, "favorites", root.DiffColumns()[0].PropertyName)
}

func TestLoad_MissingRowStaysInsert(t *testing.T) {
	uow, _ := newUnitOfWork(t)
	root, err := uow.Persist("post", value.RecordOf("id", 42, "title", "x"))
	require.NoError(t, err)

	require.NoError(t, uow.Load(context.Background(), newFakeLoader()))
	assert.True(t, root.MustBeInserted())
}

func TestLoad_PropagatesLoaderErrors(t *testing.T) {
	uow, _ := newUnitOfWork(t)
	_, err := uow.Persist("post", value.RecordOf("id", 1))
	require.NoError(t, err)

	loader := newFakeLoader()
	loader.err = errors.New("connection refused")
	err = uow.Load(context.Background(), loader)
	assert.ErrorContains(t, err, "connection refused")
}

func TestLoad_PropagatesNormalizationErrors(t *testing.T) {
	uow, reg := newUnitOfWork(t)
	loader := newFakeLoader()
	loader.put(reg.Entity("post"), value.RecordOf("id", 1))

	_, err := uow.Persist("post", value.RecordOf("id", 1, "publishedAt", "someday"))
	require.NoError(t, err)

	err = uow.Load(context.Background(), loader)
	var nerr *normalize.ValueNormalizationError
	assert.True(t, errors.As(err, &nerr))
}

func TestLoad_BoundsConcurrency(t *testing.T) {
	reg := metadatatest.BlogRegistry(t)
	uow := NewUnitOfWork(reg, Config{LoadConcurrency: 2})
	loader := newFakeLoader()
	loader.delay = 5 * time.Millisecond

	for i := 1; i <= 6; i++ {
		_, err := uow.Persist("user", value.RecordOf("id", i))
		require.NoError(t, err)
	}
	require.NoError(t, uow.Load(context.Background(), loader))

	assert.LessOrEqual(t, atomic.LoadInt32(&loader.peak), int32(2))
	assert.Len(t, loader.calls, 6)
}

func TestSnapshotCache_CollapsesDuplicateLoads(t *testing.T) {
	reg := metadatatest.BlogRegistry(t)
	user := reg.Entity("user")
	loader := newFakeLoader()
	loader.delay = 5 * time.Millisecond
	loader.put(user, value.RecordOf("id", 1, "name", "ada"))

	cache := newSnapshotCache(loader)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := cache.load(context.Background(), user, value.Scalar(1))
			assert.NoError(t, err)
			assert.Equal(t, "ada", rec.Value("name").Raw())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, loader.calls[identityKey(user, value.Scalar(1))])
}

func TestLoad_JunctionDifferences(t *testing.T) {
	uow, reg := newUnitOfWork(t)
	post := reg.Entity("post")
	loader := newFakeLoader()
	loader.put(post, value.RecordOf("id", 1))
	loader.relate(post.Relation("categories"), 1, 2, 3)

	newCategory := value.RecordOf("name", "fresh")
	root, err := uow.Persist("post", value.RecordOf(
		"id", 1,
		"categories", []any{map[string]any{"id": 3}, 4, newCategory},
	))
	require.NoError(t, err)
	require.NoError(t, uow.Load(context.Background(), loader))

	require.Len(t, root.JunctionInserts(), 1)
	inserts := root.JunctionInserts()[0]
	assert.Equal(t, []value.Value{value.Scalar(4)}, inserts.IDs)
	require.Len(t, inserts.Subjects, 1)
	assert.Same(t, newCategory, inserts.Subjects[0].DesiredEntity())

	require.Len(t, root.JunctionRemoves(), 1)
	assert.Equal(t, []value.Value{value.Scalar(2)}, root.JunctionRemoves()[0].IDs)
}

func TestLoad_UndefinedToManyPropertyIsUntouched(t *testing.T) {
	uow, reg := newUnitOfWork(t)
	post := reg.Entity("post")
	loader := newFakeLoader()
	loader.put(post, value.RecordOf("id", 1))
	loader.relate(post.Relation("categories"), 1, 2)
	loader.relate(post.Relation("comments"), 1, 5)

	root, err := uow.Persist("post", value.RecordOf("id", 1, "title", "t"))
	require.NoError(t, err)
	require.NoError(t, uow.Load(context.Background(), loader))

	assert.Empty(t, root.JunctionInserts())
	assert.Empty(t, root.JunctionRemoves())
	assert.False(t, root.HasRelationUpdates())
}

func TestLoad_InverseRelationUpdatesAndOrphans(t *testing.T) {
	uow, reg := newUnitOfWork(t)
	post := reg.Entity("post")
	comment := reg.Entity("comment")

	loader := newFakeLoader()
	loader.put(post, value.RecordOf("id", 1))
	loader.put(comment, value.RecordOf("id", 5, "body", "kept", "post_id", 1))
	loader.put(comment, value.RecordOf("id", 6, "body", "dropped", "post_id", 1))
	loader.put(comment, value.RecordOf("id", 7, "body", "moved", "post_id", 2))
	loader.relate(post.Relation("comments"), 1, 5, 6)

	root, err := uow.Persist("post", value.RecordOf(
		"id", 1,
		"comments", []any{
			map[string]any{"id": 5, "body": "kept"},
			map[string]any{"id": 7, "body": "moved"},
			map[string]any{"body": "new"},
		},
	))
	require.NoError(t, err)
	require.NoError(t, uow.Load(context.Background(), loader))

	updates := root.RelationUpdates()
	require.Len(t, updates, 2)
	assert.True(t, value.Equal(value.Scalar(7), updates[0].RelatedIdentifier()))
	assert.Same(t, root, updates[0].Value)
	require.NotNil(t, updates[1].RelatedSubject)
	assert.Equal(t, "new", updates[1].RelatedSubject.DesiredEntity().Value("body").Raw())

	var orphan *subject.Subject
	for _, s := range uow.Subjects() {
		if s.MustBeRemoved {
			orphan = s
		}
	}
	require.NotNil(t, orphan, "comments cascade removes, so the detached comment is removed")
	assert.False(t, orphan.HasDesiredEntity())
	assert.True(t, value.Equal(value.Scalar(6), orphan.Identifier()))
}

func TestLoad_InverseRelationWithoutCascadeRemoveDetaches(t *testing.T) {
	uow, reg := newUnitOfWork(t)
	details := reg.Entity("post_details")
	loader := newFakeLoader()
	loader.put(details, value.RecordOf("id", 3, "summary", "s"))
	loader.relate(details.Relation("post"), 3, 8)

	root, err := uow.Persist("post_details", value.RecordOf("id", 3, "post", nil))
	require.NoError(t, err)
	require.NoError(t, uow.Load(context.Background(), loader))

	require.Len(t, root.RelationUpdates(), 1)
	u := root.RelationUpdates()[0]
	assert.True(t, value.Equal(value.Scalar(8), u.Related))
	assert.Nil(t, u.Value)
}

func TestLoad_RemovedSubjectClearsJunctionRows(t *testing.T) {
	uow, reg := newUnitOfWork(t)
	post := reg.Entity("post")
	loader := newFakeLoader()
	loader.put(post, value.RecordOf("id", 1))
	loader.relate(post.Relation("categories"), 1, 2, 3)

	root, err := uow.Remove("post", value.RecordOf("id", 1))
	require.NoError(t, err)
	require.NoError(t, uow.Load(context.Background(), loader))

	require.Len(t, root.JunctionRemoves(), 1)
	assert.Len(t, root.JunctionRemoves()[0].IDs, 2)
}

func TestLoad_SchedulesForeignKeyToInsertedEntity(t *testing.T) {
	uow, reg := newUnitOfWork(t)
	loader := newFakeLoader()
	loader.put(reg.Entity("post"), value.RecordOf("id", 1, "details_id", nil))

	root, err := uow.Persist("post", value.RecordOf("id", 1, "details", map[string]any{"summary": "new"}))
	require.NoError(t, err)
	require.NoError(t, uow.Load(context.Background(), loader))

	require.Len(t, root.DiffRelations(), 1)
	assert.Equal(t, "details", root.DiffRelations()[0].PropertyName)
	assert.True(t, root.MustBeUpdated())
}
