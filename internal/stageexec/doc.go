// Package stageexec is the generic stage processor. A Policy names the
// status a stage consumes, the status it produces and the capability that
// does the work; Run claims a batch, calls the capability once per item
// under a deadline, and commits each result with the revision it claimed.
//
// Outcomes per item: advanced (committed), pending (transient error, item
// untouched), failed (permanent error, item moved to the failed lane) and
// skipped (another writer got there first). Only infrastructure errors abort
// the batch.
package stageexec
