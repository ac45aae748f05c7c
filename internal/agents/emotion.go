package agents

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"sentinel/internal/unit"
)

// EmotionUnit detects the dominant emotion and emotional spikes over time.
type EmotionUnit struct {
	base
	llm Completer
}

// NewEmotionUnit constructs the emotion unit.
func NewEmotionUnit(client Completer) *EmotionUnit {
	return &EmotionUnit{llm: client}
}

func (u *EmotionUnit) Name() unit.Name       { return unit.Emotion }
func (u *EmotionUnit) Requires() []unit.Name { return []unit.Name{unit.Audio} }

func (u *EmotionUnit) HealthCheck(ctx context.Context) unit.Health {
	return llmHealth(ctx, unit.Emotion, u.llm)
}

func (u *EmotionUnit) Execute(ctx context.Context, in unit.Inputs) (any, error) {
	transcript, err := transcriptFor(in)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(emotionPromptTemplate, timestampedTranscript(transcript.Chunks))

	var reply struct {
		Dominant string  `json:"dominant_emotion"`
		Spikes   []Spike `json:"emotion_spikes"`
	}
	if err := complete(ctx, u.llm, unit.Emotion, emotionSystemPrompt, prompt, &reply); err != nil {
		return nil, err
	}

	result := Emotion{Dominant: strings.ToLower(strings.TrimSpace(reply.Dominant))}
	if result.Dominant == "" {
		result.Dominant = "neutral"
	}
	for _, spike := range reply.Spikes {
		spike.Emotion = strings.ToLower(strings.TrimSpace(spike.Emotion))
		if spike.Emotion == "" {
			continue
		}
		spike.Intensity = min(max(spike.Intensity, 0), 1)
		spike.Timestamp = max(spike.Timestamp, 0)
		spike.Evidence = strings.TrimSpace(spike.Evidence)
		result.Spikes = append(result.Spikes, spike)
	}
	slices.SortStableFunc(result.Spikes, func(a, b Spike) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return result, nil
}
