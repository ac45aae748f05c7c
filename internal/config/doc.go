// Package config loads, normalizes, and validates Sentinel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SENTINEL_LLM_API_KEY and HF_TOKEN. The Config type centralizes the unit
// toggles, timeouts, and collaborator credentials the CLI needs so a run can be
// configured in one pass and handed to the orchestrator explicitly.
package config
