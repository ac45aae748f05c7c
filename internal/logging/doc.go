// Package logging assembles structured slog loggers and formatting helpers used
// across Sentinel.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so unit code automatically tags
// log lines with media IDs, unit names, and run IDs. A JSON copy of every
// record can be teed to a log file. The package also provides a no-op logger
// for tests and wiring code that cannot fail.
package logging
