package testsupport

import (
	"context"
	"testing"

	"sentinel/internal/agents"
	"sentinel/internal/config"
	"sentinel/internal/index"
)

// MustOpenIndex opens an index.Store for tests and registers cleanup.
func MustOpenIndex(t testing.TB, cfg *config.Config) *index.Store {
	t.Helper()

	store, err := index.Open(cfg)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// IndexTranscript stores a transcript built from the given chunk texts, one
// ten-second chunk per text.
func IndexTranscript(t testing.TB, store *index.Store, mediaID string, texts ...string) agents.Transcript {
	t.Helper()

	transcript := agents.Transcript{Language: "en"}
	for i, text := range texts {
		transcript.Chunks = append(transcript.Chunks, agents.Chunk{
			Text:  text,
			Start: float64(i * 10),
			End:   float64(i*10 + 10),
		})
	}
	if n := len(transcript.Chunks); n > 0 {
		transcript.DurationSeconds = transcript.Chunks[n-1].End
	}
	if err := store.IndexTranscript(context.Background(), mediaID, transcript); err != nil {
		t.Fatalf("store.IndexTranscript: %v", err)
	}
	return transcript
}
