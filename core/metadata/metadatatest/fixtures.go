// Package metadatatest provides entity metadata fixtures for tests.
package metadatatest

import (
	_ "embed"
	"testing"

	"entity-persister/core/metadata"
)

//go:embed blog.yaml
var blogDefinitions []byte

// BlogDefinitions returns the raw YAML of the blog fixture.
func BlogDefinitions() []byte {
	out := make([]byte, len(blogDefinitions))
	copy(out, blogDefinitions)
	return out
}

// BlogRegistry returns a freshly loaded registry with the blog fixture:
// users, categories, posts (with embedded counters and typed columns), comments,
// post details, and composite-keyed stock items referenced by listings.
func BlogRegistry(t testing.TB) *metadata.Registry {
	t.Helper()
	entities, err := metadata.ParseDefinitions(BlogDefinitions())
	if err != nil {
		t.Fatalf("parse blog fixture: %v", err)
	}
	reg := metadata.NewRegistry()
	if err := reg.Load(entities); err != nil {
		t.Fatalf("load blog fixture: %v", err)
	}
	return reg
}
