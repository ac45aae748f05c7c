// Package ytdlp downloads remote media (YouTube and the other sites yt-dlp
// supports) into a local working directory so it can be analysed like a
// local file.
//
// The binary runs with --write-info-json; title, uploader and duration are
// read back from that sidecar rather than parsed from stdout.
package ytdlp
