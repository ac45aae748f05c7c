// Package pipeline runs registered analysis units in dependency order.
//
// A Registry is the dispatch table: one unit.Handler per unit name. The
// Orchestrator derives the execution order from the handlers' declared
// prerequisites, decides per unit whether it is eligible (feature toggle,
// prerequisite outcomes, data readiness), invokes eligible units through
// unit.Run, and records every outcome in a write-once Results store.
//
// Units with no dependency path between them run concurrently when
// Options.Concurrency is above one. The first rate-limit signal cancels the
// rest of the run and Run returns no Results for that attempt; RunWithRetry
// re-runs the whole analysis after a cooldown.
//
// Observers receive each successful output on a side channel. Their failures
// are logged and never affect the run.
package pipeline
