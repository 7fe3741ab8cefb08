// Package metadata describes entity types to the persistence core.
//
// An Entity lists its Columns and Relations. Column descriptors carry the
// semantic type used by value normalization and the flags marking system
// managed columns (virtual, parent id, discriminator, create/update date,
// version). Relation descriptors carry cardinality, the owning side and the join
// metadata needed to read and write foreign keys and junction tables.
//
// Metadata is built once, usually from a YAML document through
// ParseDefinitions, and loaded into a Registry which resolves relation targets
// and inverse sides. After loading, descriptors are treated as immutable and
// may be shared by any number of subjects.
//
// # Usage
//
//	entities, err := metadata.LoadFile("entities.yaml")
//	reg := metadata.NewRegistry()
//	if err := reg.Load(entities); err != nil {
//	    log.Fatal(err)
//	}
//	post := reg.Entity("post")
package metadata
