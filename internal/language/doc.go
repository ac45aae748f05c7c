// Package language normalizes the language labels that flow through a run:
// the configured WhisperX language, the language WhisperX detects, and the
// names shown in reports. Parsing and display names come from
// golang.org/x/text/language.
package language
