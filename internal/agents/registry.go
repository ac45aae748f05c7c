package agents

import (
	"context"

	"sentinel/internal/pipeline"
	"sentinel/internal/unit"
)

// Dependencies carries the collaborators shared by the analysis units.
type Dependencies struct {
	Transcriber Transcriber
	Text        Completer
	Vision      VisionCompleter
}

// Handlers returns the analysis units in declaration order.
func Handlers(deps Dependencies) []unit.Handler {
	return []unit.Handler{
		NewAudioUnit(deps.Transcriber),
		NewEmotionUnit(deps.Text),
		NewTaggingUnit(deps.Text),
		NewVideoUnit(deps.Vision),
		NewReasoningUnit(deps.Text),
		NewRiskUnit(deps.Text),
	}
}

// NewRegistry builds the dispatch table holding every analysis unit.
func NewRegistry(deps Dependencies) (*pipeline.Registry, error) {
	reg := pipeline.NewRegistry()
	for _, h := range Handlers(deps) {
		if err := reg.Register(h); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// CheckHealth asks every unit that can verify its collaborators to do so.
func CheckHealth(ctx context.Context, reg *pipeline.Registry) []unit.Health {
	var out []unit.Health
	for _, name := range reg.Names() {
		h, _ := reg.Handler(name)
		if checker, ok := h.(unit.HealthChecker); ok {
			out = append(out, checker.HealthCheck(ctx))
		}
	}
	return out
}
