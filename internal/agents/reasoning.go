package agents

import (
	"context"
	"fmt"
	"strings"

	"sentinel/internal/unit"
)

// reasoningTranscriptLimit bounds how much transcript text reaches the prompt.
const reasoningTranscriptLimit = 6000

// ReasoningUnit synthesizes intent, insights and conclusions from the
// transcript and whichever upstream signals are available.
type ReasoningUnit struct {
	base
	llm Completer
}

// NewReasoningUnit constructs the reasoning unit.
func NewReasoningUnit(client Completer) *ReasoningUnit {
	return &ReasoningUnit{llm: client}
}

func (u *ReasoningUnit) Name() unit.Name { return unit.Reasoning }

func (u *ReasoningUnit) Requires() []unit.Name {
	return []unit.Name{unit.Audio, unit.Tagging}
}

// Uses lists signals that enrich the prompt when present.
func (u *ReasoningUnit) Uses() []unit.Name {
	return []unit.Name{unit.Emotion, unit.Video}
}

func (u *ReasoningUnit) HealthCheck(ctx context.Context) unit.Health {
	return llmHealth(ctx, unit.Reasoning, u.llm)
}

func (u *ReasoningUnit) Execute(ctx context.Context, in unit.Inputs) (any, error) {
	transcript, err := transcriptFor(in)
	if err != nil {
		return nil, err
	}
	tags, err := unit.Input[Tags](in, unit.Tagging)
	if err != nil {
		return nil, err
	}

	dominant, spikes := "(unavailable)", "(unavailable)"
	if emotion, ok := unit.OptionalInput[Emotion](in, unit.Emotion); ok {
		dominant = emotion.Dominant
		spikes = describeSpikes(emotion.Spikes)
	}
	scenes := "(unavailable)"
	if vision, ok := unit.OptionalInput[Vision](in, unit.Video); ok {
		scenes = formatList(vision.SceneSummaries)
	}

	prompt := fmt.Sprintf(reasoningPromptTemplate,
		truncate(transcript.FullText, reasoningTranscriptLimit),
		dominant,
		spikes,
		formatList(tags.Topics),
		formatList(tags.Entities),
		scenes,
	)

	var reply struct {
		Intent      string    `json:"intent"`
		KeyInsights []Insight `json:"key_insights"`
		Conclusions []string  `json:"conclusions"`
	}
	if err := complete(ctx, u.llm, unit.Reasoning, reasoningSystemPrompt, prompt, &reply); err != nil {
		return nil, err
	}

	result := Reasoning{
		Summary:     strings.TrimSpace(reply.Intent),
		KeyThemes:   append([]string(nil), tags.Topics...),
		Conclusions: trimList(reply.Conclusions),
	}
	for _, insight := range reply.KeyInsights {
		insight.Insight = strings.TrimSpace(insight.Insight)
		if insight.Insight == "" {
			continue
		}
		insight.Evidence = strings.TrimSpace(insight.Evidence)
		insight.Confidence = min(max(insight.Confidence, 0), 1)
		result.Insights = append(result.Insights, insight)
	}
	return result, nil
}

func describeSpikes(spikes []Spike) string {
	if len(spikes) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(spikes))
	for _, spike := range spikes {
		parts = append(parts, fmt.Sprintf("%s at %.1fs (%.2f)", spike.Emotion, spike.Timestamp, spike.Intensity))
	}
	return strings.Join(parts, "; ")
}
