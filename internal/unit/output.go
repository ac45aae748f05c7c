package unit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Name identifies a processing unit.
type Name string

// Well-known unit names.
const (
	Audio     Name = "audio"
	Emotion   Name = "emotion"
	Tagging   Name = "tagging"
	Video     Name = "video"
	Reasoning Name = "reasoning"
	Risk      Name = "risk"
	Chat      Name = "chat"
)

func (n Name) String() string { return string(n) }

// Metadata records timing and identity for a single unit invocation. RunID is
// unique per invocation, not per pipeline run.
type Metadata struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	TimeoutSeconds  float64   `json:"timeout_seconds"`
	Trace           string    `json:"trace,omitempty"`
}

// Duration returns the elapsed wall time of the invocation.
func (m Metadata) Duration() time.Duration {
	return m.FinishedAt.Sub(m.StartedAt)
}

// Output is the result of one unit invocation. A failed Output has an empty
// Result and a non-empty Error; a successful Output always carries a Result.
// Outputs are shared by pointer once recorded and must be treated as read-only.
type Output struct {
	Unit     Name     `json:"unit"`
	MediaID  string   `json:"media_id,omitempty"`
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
	Metadata Metadata `json:"metadata"`
	Result   any      `json:"result,omitempty"`
}

// Failed reports whether the invocation did not produce a usable result.
func (o *Output) Failed() bool {
	return o == nil || !o.Success
}

// ResultAs returns the domain payload of a successful output as T.
func ResultAs[T any](o *Output) (T, bool) {
	var zero T
	if o == nil || !o.Success {
		return zero, false
	}
	v, ok := o.Result.(T)
	return v, ok
}

// DecodeResult converts an archived output (whose Result was decoded from JSON
// into generic maps) back into T.
func DecodeResult[T any](o *Output) (T, error) {
	var out T
	if o == nil || !o.Success {
		return out, fmt.Errorf("decode result: output unavailable")
	}
	if typed, ok := o.Result.(T); ok {
		return typed, nil
	}
	raw, err := json.Marshal(o.Result)
	if err != nil {
		return out, fmt.Errorf("decode result: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
