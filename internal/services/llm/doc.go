// Package llm is a small client for OpenAI-compatible chat completion
// endpoints (OpenRouter by default) that return JSON objects.
//
// The generator uses it to draft display text, caption and hashtags; preflight
// uses HealthCheck to verify the key and model before a run.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, empty completions and network
// timeouts with exponential backoff (base 1s, max 10s, four attempts by
// default). Retry-After is honoured. Context cancellation aborts immediately.
//
// # Error Classification
//
// CompleteJSON returns errors tagged with the services markers so the stage
// processor can route them: malformed requests the endpoint rejects are
// permanent, everything else (outages, rate limits, bad credentials) is
// external and leaves the item for a later batch.
package llm
