package index

import (
	"context"
	"fmt"

	"sentinel/internal/agents"
	"sentinel/internal/pipeline"
	"sentinel/internal/unit"
)

// TranscriptObserver returns a pipeline observer that indexes every
// successful transcription. It ignores other units.
func (s *Store) TranscriptObserver() pipeline.Observer {
	return pipeline.ObserverFunc(func(ctx context.Context, out *unit.Output) error {
		if out == nil || out.Unit != unit.Audio || out.Failed() {
			return nil
		}
		transcript, ok := unit.ResultAs[agents.Transcript](out)
		if !ok {
			return fmt.Errorf("index transcript: unexpected result type %T", out.Result)
		}
		return s.IndexTranscript(ctx, out.MediaID, transcript)
	})
}
