// Package store holds the persisted-collection abstraction shared by the
// pipeline: named records with whole-value load/replace semantics. Absence of
// a record is equivalent to an empty record, never an error. Callers own the
// read-modify-write cycle and must serialize it; the backends only guarantee
// that a single Replace is atomic.
package store

import "context"

// Collection is a named-record store with atomic whole-record replace.
type Collection interface {
	// Load unmarshals the named record into v. A missing record leaves v
	// untouched and returns nil.
	Load(ctx context.Context, name string, v any) error
	// Replace atomically overwrites the named record with v.
	Replace(ctx context.Context, name string, v any) error
}
