package agents

import (
	"context"
	"fmt"

	"sentinel/internal/unit"
)

// TaggingUnit extracts topics, named entities and search keywords.
type TaggingUnit struct {
	base
	llm Completer
}

// NewTaggingUnit constructs the tagging unit.
func NewTaggingUnit(client Completer) *TaggingUnit {
	return &TaggingUnit{llm: client}
}

func (u *TaggingUnit) Name() unit.Name       { return unit.Tagging }
func (u *TaggingUnit) Requires() []unit.Name { return []unit.Name{unit.Audio} }

func (u *TaggingUnit) HealthCheck(ctx context.Context) unit.Health {
	return llmHealth(ctx, unit.Tagging, u.llm)
}

func (u *TaggingUnit) Execute(ctx context.Context, in unit.Inputs) (any, error) {
	transcript, err := transcriptFor(in)
	if err != nil {
		return nil, err
	}
	var reply Tags
	prompt := fmt.Sprintf(taggingPromptTemplate, transcript.FullText)
	if err := complete(ctx, u.llm, unit.Tagging, taggingSystemPrompt, prompt, &reply); err != nil {
		return nil, err
	}
	return Tags{
		Topics:   normalizeList(reply.Topics),
		Entities: normalizeList(reply.Entities),
		Keywords: normalizeList(reply.Keywords),
	}, nil
}
