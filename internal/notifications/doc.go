// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Run summaries are
// only sent when a cycle published or failed something, and per-item failure
// alerts can be switched off independently.
package notifications
