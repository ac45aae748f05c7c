// Package services defines shared utilities consumed by the analysis units and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp media IDs, unit names, run IDs, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified uniformly (rate limited, timeout, validation, tooling).
//   - Rate-limit detection for providers that only report throttling in text.
//
// Use these helpers when wiring new unit logic so operational behaviour stays
// uniform across the pipeline.
package services
