// Package persistence exposes entity persistence over a relational database.
//
// # Store
//
// Store is the GORM-backed collaborator of the reconcile package. It reads
// snapshots keyed by property name, with embedded columns nested, JSON columns
// parsed and owning foreign keys flattened, and executes plans inside a single
// transaction. Join table inserts and row removals are batched.
//
// # Service
//
// Service wraps a unit of work per call:
//   - Persist: insert or update an entity graph
//   - Remove: delete a stored row and whatever cascades from it
//   - Find: read a stored row
//   - CheckSchema: compare the entity definitions with the database schema
//
// Persist and Remove accept a dry-run flag that returns the plan without
// executing it.
//
// # HTTP
//
//	POST   /persist/:entity?dry_run=true
//	GET    /persist/:entity/:id
//	DELETE /persist/:entity/:id?dry_run=true
//	GET    /persist/schema
//
// Conflicting operations are reported as 409, malformed values as 422 and
// unknown entities or rows as 404.
package persistence
