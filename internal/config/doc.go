// Package config loads, normalizes, and validates Subcue configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SUBCUE_NTFY_TOPIC. The Config type centralizes every knob the daemon and CLI
// need: media roots, engine definitions, batch concurrency, and retention
// policy are all discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
