// Package daemon hosts the long-running workflow loop.
//
// A flock on the lock file under the data directory keeps a second daemon
// from starting against the same database. Ad-hoc CLI runs do not take the
// lock; they rely on revision-checked commits like any other processor.
package daemon
