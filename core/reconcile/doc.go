// Package reconcile plans and applies the operations that bring stored rows in
// line with a desired entity graph.
//
// # Architecture
//
// The package consists of three main components:
//
// 1. UnitOfWork: walks the desired graph from the entities passed to Persist and
// Remove, creating one subject per entity instance reachable through cascading
// relations. Load pairs every subject with its stored row, which computes the
// column and relation diffs, and derives junction table changes and inverse-side
// relation updates.
//
// 2. Plan: BuildPlan validates every subject and orders the resulting
// operations. Inserts follow subject creation order, with rows referenced by an
// owning foreign key inserted first; removes run in reverse creation order.
//
// 3. Executor: ApplyPlan hands the operations to a storage-specific Executor,
// inside a transaction when the executor implements Transactor. Batch variants
// are used when the executor provides them.
//
// Snapshots are fetched concurrently, bounded by Config.LoadConcurrency, and
// duplicate requests are collapsed. Diffing and planning are single-threaded.
//
// # Usage Example
//
//	uow := reconcile.NewUnitOfWork(registry, reconcile.Config{Logger: log})
//	if _, err := uow.Persist("post", post); err != nil {
//	    return err
//	}
//	if err := uow.Load(ctx, store); err != nil {
//	    return err
//	}
//	plan, err := uow.BuildPlan()
//	if err != nil {
//	    return err
//	}
//	executed, err := reconcile.ApplyPlan(ctx, store, plan, reconcile.Options{})
package reconcile
