// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and returns a Result; helper methods expose stream
// presence, the primary video stream and container duration so ingestion can
// decide which analysis inputs a media file can supply.
package ffprobe
