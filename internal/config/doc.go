// Package config loads, normalizes, and validates transcriber configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as GEMINI_API_KEY and REDIS_ADDR. The Config type centralizes
// every knob the pipeline and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors tagged as invalid configuration.
package config
