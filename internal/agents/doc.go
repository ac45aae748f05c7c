// Package agents implements the analysis units that run inside the pipeline:
// transcription, emotion, tagging, vision, reasoning and risk, plus the
// retrieval-backed chat unit that answers questions about an analysed file.
//
// Each unit is a unit.Handler. Model access goes through the small
// Completer, VisionCompleter and Transcriber interfaces so tests can supply
// canned responses. NewRegistry wires the analysis units into a
// pipeline.Registry.
package agents
