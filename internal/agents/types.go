package agents

import (
	"encoding/json"
	"strings"
)

// Chunk is one timestamped transcript segment.
type Chunk struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
}

// Transcript is the result of the audio unit.
type Transcript struct {
	Language        string  `json:"language,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Chunks          []Chunk `json:"chunks"`
	FullText        string  `json:"full_text"`
}

// Spike marks a moment where the emotional tone changes noticeably.
type Spike struct {
	Timestamp float64 `json:"timestamp"`
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
	Evidence  string  `json:"evidence,omitempty"`
}

// Emotion is the result of the emotion unit.
type Emotion struct {
	Dominant string  `json:"dominant_emotion"`
	Spikes   []Spike `json:"emotion_spikes"`
}

// Tags is the result of the tagging unit.
type Tags struct {
	Topics   []string `json:"topics"`
	Entities []string `json:"entities"`
	Keywords []string `json:"keywords"`
}

// Vision is the result of the video unit.
type Vision struct {
	SceneSummaries     []string `json:"scene_summaries"`
	VisualTags         []string `json:"visual_tags"`
	DetectedActivities []string `json:"detected_activities"`
}

// Insight is one analytical observation from the reasoning unit.
type Insight struct {
	Insight    string  `json:"insight"`
	Evidence   string  `json:"evidence,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// UnmarshalJSON accepts either a bare string or an object, since models
// return both shapes for list items.
func (i *Insight) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*i = Insight{Insight: strings.TrimSpace(text)}
		return nil
	}
	type plain Insight
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*i = Insight(obj)
	return nil
}

// Reasoning is the result of the reasoning unit.
type Reasoning struct {
	Summary     string    `json:"summary"`
	KeyThemes   []string  `json:"key_themes"`
	Insights    []Insight `json:"insights"`
	Conclusions []string  `json:"conclusions"`
}

// Risk levels, ordered by severity.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskCategories lists the categories the risk unit evaluates.
var RiskCategories = []string{"compliance", "misinformation", "safety", "reputational", "ethical", "legal"}

// RiskFlag is one category of concern raised by the risk unit.
type RiskFlag struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Timestamp   *float64 `json:"timestamp,omitempty"`
}

// Risk is the result of the risk unit.
type Risk struct {
	Level   string     `json:"overall_risk_level"`
	Flags   []RiskFlag `json:"risk_flags"`
	Actions []string   `json:"recommended_actions"`
}

// Passage is a transcript excerpt retrieved for a chat question.
type Passage struct {
	ChunkID int64   `json:"chunk_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Score   float64 `json:"score,omitempty"`
}

// Answer is the result of the chat unit.
type Answer struct {
	Text      string    `json:"answer"`
	Citations []Passage `json:"citations,omitempty"`
	SessionID string    `json:"session_id"`
}
