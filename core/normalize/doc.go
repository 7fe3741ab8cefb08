// Package normalize converts raw column values into a canonical comparable form
// according to the column's semantic type.
//
// Only the entity side is normalized for date and time columns: database
// snapshots are expected to carry those already canonical. Datetime values are
// normalized on both sides, in UTC or in the normalizer's local time zone when
// the column asks for it. JSON values are serialized to a canonical string (the
// database side only when present) and delimited arrays are joined on both
// sides. Null and undefined entity values are never transformed.
package normalize
