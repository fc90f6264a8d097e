// Package config loads, normalizes, and validates postflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// INSTAGRAM_ACCESS_TOKEN and POSTFLOW_LLM_API_KEY. The Config type centralizes
// every knob the stages, daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
