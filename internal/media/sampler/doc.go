// Package sampler prepares a media file for analysis: it inspects the
// container, extracts a mono 16 kHz WAV for transcription and samples JPEG
// frames at a fixed interval for the vision unit.
package sampler
