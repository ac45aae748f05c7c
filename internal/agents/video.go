package agents

import (
	"context"
	"errors"

	"sentinel/internal/services"
	"sentinel/internal/unit"
)

// VideoUnit describes sampled frames with a vision-capable model.
type VideoUnit struct {
	base
	llm VisionCompleter
}

// NewVideoUnit constructs the vision unit.
func NewVideoUnit(client VisionCompleter) *VideoUnit {
	return &VideoUnit{llm: client}
}

func (u *VideoUnit) Name() unit.Name       { return unit.Video }
func (u *VideoUnit) Requires() []unit.Name { return nil }

// Ready skips the unit when no frames were sampled.
func (u *VideoUnit) Ready(in unit.Inputs) error {
	if !in.Source.HasFrames() {
		return errors.New("no video frames supplied")
	}
	return nil
}

func (u *VideoUnit) HealthCheck(ctx context.Context) unit.Health {
	return llmHealth(ctx, unit.Video, u.llm)
}

func (u *VideoUnit) Execute(ctx context.Context, in unit.Inputs) (any, error) {
	if u.llm == nil {
		return nil, services.Wrap(services.ErrConfiguration, "video", "complete", "vision client not configured", nil)
	}
	content, err := u.llm.CompleteVisionJSON(ctx, visionSystemPrompt, visionPrompt, in.Source.Frames)
	if err != nil {
		return nil, err
	}
	var reply Vision
	if err := decode(unit.Video, content, &reply); err != nil {
		return nil, err
	}
	return Vision{
		SceneSummaries:     trimList(reply.SceneSummaries),
		VisualTags:         normalizeList(reply.VisualTags),
		DetectedActivities: normalizeList(reply.DetectedActivities),
	}, nil
}
