// Package notifications delivers run events to ntfy.
//
// NewService reads the topic and per-event toggles from config.toml and
// degrades to a no-op when no topic is configured. Callers publish an Event
// with a loosely typed Payload and never deal with HTTP themselves.
package notifications
