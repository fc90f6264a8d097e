// Package stage defines the contract between the generic stage processor and
// the per-stage capabilities (generation, validation, rendering, scheduling,
// publishing), plus the health records stages report.
package stage
