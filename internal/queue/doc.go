// Package queue persists content items in SQLite and owns their lifecycle
// rules.
//
// The Store is the only shared mutable resource in the pipeline. Readers
// claim items without mutating them; writers commit a status transition
// together with the revision they read, and the Store rejects the write with
// ErrStaleRevision when another writer got there first. Every write bumps the
// revision and appends a row to the item_events audit table in the same
// transaction.
//
// The transition table in transitions.go is authoritative: a status change
// not listed there is refused with ErrInvalidTransition, and field rules
// (asset reference from rendered onward, planned publish timestamp from
// scheduled onward) are refused with ErrInvariant. Schema changes bump the
// version in schema.go; users recreate the database to adopt the new schema.
package queue
