// Package main hosts the Sentinel CLI entrypoint and command graph.
//
// The Cobra command tree runs analyses in-process, then exposes the archived
// reports, transcript search and chat over the local index. Configuration
// resolution and logger setup live in commandContext so subcommands only deal
// with presentation.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through a command or flag.
package main
