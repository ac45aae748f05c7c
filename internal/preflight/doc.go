// Package preflight provides readiness checks for the binaries, directories,
// and services Sentinel depends on.
//
// "sentinel doctor" prints every check from RunAll. The analyze command runs
// the cheaper directory and binary checks before staging media so a missing
// ffmpeg fails fast instead of after a long transcription.
package preflight
