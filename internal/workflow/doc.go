// Package workflow runs a complete analysis of one media file.
//
// The Runner stages the media into a locked work directory, samples audio and
// frames, executes the unit pipeline (retrying whole runs after a rate-limit
// abort), archives the report in the index, and emits notifications and
// metrics. Transcripts reach the search index through a pipeline observer, so
// a run that aborts later still leaves its transcript searchable.
//
// The CLI owns flag parsing and rendering; this package is the authoritative
// home for wiring collaborators together so other entrypoints can reuse it.
package workflow
