package agents

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"sentinel/internal/language"
	"sentinel/internal/logging"
	"sentinel/internal/services"
	"sentinel/internal/unit"
)

// AudioUnit transcribes the extracted audio track.
type AudioUnit struct {
	base
	transcriber Transcriber
}

// NewAudioUnit constructs the transcription unit.
func NewAudioUnit(transcriber Transcriber) *AudioUnit {
	return &AudioUnit{transcriber: transcriber}
}

func (u *AudioUnit) Name() unit.Name       { return unit.Audio }
func (u *AudioUnit) Requires() []unit.Name { return nil }

// Ready skips the unit when the media has no audio track.
func (u *AudioUnit) Ready(in unit.Inputs) error {
	if !in.Source.HasAudio() {
		return errors.New("no audio track supplied")
	}
	return nil
}

// Execute runs the transcriber and keeps the non-empty segments.
func (u *AudioUnit) Execute(ctx context.Context, in unit.Inputs) (any, error) {
	if u.transcriber == nil {
		return nil, services.Wrap(services.ErrConfiguration, "audio", "transcribe", "transcriber not configured", nil)
	}
	outputDir := filepath.Join(filepath.Dir(in.Source.AudioPath), "transcript")
	result, err := u.transcriber.Transcribe(ctx, in.Source.AudioPath, outputDir)
	if err != nil {
		return nil, err
	}

	transcript := Transcript{Language: strings.ToLower(strings.TrimSpace(result.Language))}
	if code := language.Normalize(result.Language); code != "" {
		transcript.Language = code
	}
	parts := make([]string, 0, len(result.Segments))
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		transcript.Chunks = append(transcript.Chunks, Chunk{
			Text:    text,
			Start:   seg.Start,
			End:     seg.End,
			Speaker: seg.Speaker,
		})
		parts = append(parts, text)
	}
	if len(transcript.Chunks) == 0 {
		return nil, services.Wrap(services.ErrValidation, "audio", "transcribe",
			"no transcription segments (audio may be silent or unsupported)", nil)
	}
	transcript.FullText = strings.Join(parts, " ")
	transcript.DurationSeconds = transcript.Chunks[len(transcript.Chunks)-1].End

	u.log().Debug("transcription complete",
		logging.String(logging.FieldEventType, "transcript_ready"),
		logging.Int("chunks", len(transcript.Chunks)),
		logging.String("language", transcript.Language),
	)
	return transcript, nil
}
