package agents

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"sentinel/internal/logging"
	"sentinel/internal/services"
	"sentinel/internal/unit"
)

const (
	riskTranscriptLimit = 4000
	riskFallbackSummary = "Unable to reliably assess risk from the content."
)

// RiskUnit evaluates content for compliance, safety and reputational risk.
type RiskUnit struct {
	base
	llm Completer
}

// NewRiskUnit constructs the risk unit.
func NewRiskUnit(client Completer) *RiskUnit {
	return &RiskUnit{llm: client}
}

func (u *RiskUnit) Name() unit.Name { return unit.Risk }

func (u *RiskUnit) Requires() []unit.Name {
	return []unit.Name{unit.Audio, unit.Tagging}
}

// Uses lists signals that enrich the prompt when present.
func (u *RiskUnit) Uses() []unit.Name {
	return []unit.Name{unit.Reasoning}
}

func (u *RiskUnit) HealthCheck(ctx context.Context) unit.Health {
	return llmHealth(ctx, unit.Risk, u.llm)
}

func (u *RiskUnit) Execute(ctx context.Context, in unit.Inputs) (any, error) {
	transcript, err := transcriptFor(in)
	if err != nil {
		return nil, err
	}
	tags, err := unit.Input[Tags](in, unit.Tagging)
	if err != nil {
		return nil, err
	}
	var conclusions []string
	if reasoning, ok := unit.OptionalInput[Reasoning](in, unit.Reasoning); ok {
		conclusions = reasoning.Conclusions
	}

	prompt := fmt.Sprintf(riskPromptTemplate,
		truncate(transcript.FullText, riskTranscriptLimit),
		formatList(conclusions),
		formatList(tags.Topics),
		formatList(tags.Entities),
		strings.Join(RiskCategories, ", "),
	)

	var reply struct {
		Level       string   `json:"risk_level"`
		Categories  []string `json:"risk_categories"`
		Explanation string   `json:"explanation"`
		Actions     []string `json:"recommended_actions"`
	}
	err = complete(ctx, u.llm, unit.Risk, riskSystemPrompt, prompt, &reply)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrValidation):
		// An unparseable verdict degrades to a low-confidence default instead
		// of failing the unit.
		logging.WarnWithContext(u.log(), "risk response unparseable; using fallback", "risk_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "risk level reported as low with no flags"),
		)
		return Risk{Level: RiskLow, Flags: []RiskFlag{}, Actions: []string{}}, nil
	default:
		return nil, err
	}

	level := NormalizeRiskLevel(reply.Level)
	explanation := strings.TrimSpace(reply.Explanation)
	if explanation == "" {
		explanation = riskFallbackSummary
	}
	result := Risk{Level: level, Flags: []RiskFlag{}, Actions: trimList(reply.Actions)}
	seen := make(map[string]struct{}, len(reply.Categories))
	for _, raw := range normalizeList(reply.Categories) {
		category, known := canonicalRiskCategory(raw)
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		if !known {
			u.log().Debug("risk category outside known list", logging.String("category", category))
		}
		result.Flags = append(result.Flags, RiskFlag{
			Category:    category,
			Description: explanation,
			Severity:    level,
		})
	}
	return result, nil
}

// canonicalRiskCategory folds labels such as "legal risk" onto the known
// category they name. Other labels are returned unchanged with known=false.
func canonicalRiskCategory(label string) (string, bool) {
	if slices.Contains(RiskCategories, label) {
		return label, true
	}
	for _, known := range RiskCategories {
		if slices.Contains(strings.Fields(label), known) {
			return known, true
		}
	}
	return label, false
}

// NormalizeRiskLevel maps free-form severity labels onto low, medium or high.
// Unrecognised labels map to medium.
func NormalizeRiskLevel(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "", strings.Contains(v, "low"), strings.Contains(v, "none"), strings.Contains(v, "minimal"):
		return RiskLow
	case strings.Contains(v, "high"), strings.Contains(v, "severe"), strings.Contains(v, "critical"):
		return RiskHigh
	default:
		return RiskMedium
	}
}
