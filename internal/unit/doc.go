// Package unit defines the contract shared by every analysis unit: the Output
// record each invocation produces, the Handler interface units implement, the
// restricted Inputs view through which a unit reads its prerequisites, and Run,
// the lifecycle wrapper that is the only path by which unit logic executes.
//
// Run stamps a fresh run ID and timing metadata on every invocation, enforces
// the configured timeout, recovers panics, and converts failures into
// unsuccessful Outputs. Upstream throttling is the one failure Run does not
// contain: it is returned as a *RateLimitError so the caller can abort the
// whole analysis and retry after a cooldown.
package unit
