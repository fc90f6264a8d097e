// Package workflow sequences the stage processors into runs.
//
// An Orchestrator owns one stageexec.Policy per stage and runs them in
// dependency order: generator, validator, renderer, scheduler, publisher.
// Planning, when enabled, happens first. Every cycle gets a run id that is
// threaded through the context so log lines from all stages can be
// correlated. Per-item failures only show up in the Summary; a cycle is cut
// short only by store or context errors.
//
// Loop wraps the orchestrator for the daemon: it runs a cycle, waits for the
// poll interval (or the retry delay after an aborted cycle) and repeats until
// its context is cancelled.
package workflow
