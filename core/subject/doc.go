// Package subject holds the unit-of-work record for one entity instance.
//
// A Subject pairs the entity as the caller wants it stored with the row as it is
// currently stored, and keeps the deltas computed between the two: changed
// columns, changed owning relations, pending inverse-side relation updates and
// junction table membership changes. Attaching a database snapshot is the
// explicit trigger that computes the column and relation diffs.
//
// Subjects are not safe for concurrent use.
package subject
