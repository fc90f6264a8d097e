// Package preflight verifies the environment before the pipeline runs.
//
// Checks cover the working directories, the item database, and the remote
// services the configured backends depend on: the LLM endpoint when the
// generator backend is "llm" and the Graph API token when the publisher
// backend is "graph". `postflow health` prints the results; none of the
// checks mutate anything.
package preflight
