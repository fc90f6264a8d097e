// Package services defines shared utilities consumed by the stage
// capabilities and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, stage names, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     as transient (retry on a later batch) or permanent (failed lane).
//   - The injectable Clock every time-dependent stage reads "now" from.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
