// Package main hosts the postflow CLI entrypoint and command graph.
//
// Every command works directly against the SQLite item store: the planner
// and stage commands drive single batches, run drives one full cycle, and
// daemon keeps cycling until interrupted. queue and metrics are the
// reporting and out-of-band surfaces. Item failures are reported in the
// command output; the exit status is non-zero only when the command itself
// could not do its work.
package main
