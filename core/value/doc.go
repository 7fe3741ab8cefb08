// Package value provides the tagged value type exchanged between entity
// metadata, the diff engine and the persistence collaborators.
//
// Entities are not Go structs here: a desired entity or a database snapshot is a
// Record, an ordered mapping from property name to Value. A Value is one of
//
//   - Undefined: the property is absent (the caller did not touch it)
//   - Null: the property is explicitly null
//   - Scalar: a single Go value (string, number, bool, time.Time, []byte)
//   - Composite: a multi-column identifier, column name to value
//   - Object: a nested entity or embedded value object
//   - List: an ordered sequence, used by to-many relations and arrays
//
// Equal compares two values structurally with numeric normalization, and Key
// renders a canonical string so identifiers can index maps.
package value
