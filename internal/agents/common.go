package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"sentinel/internal/logging"
	"sentinel/internal/services"
	"sentinel/internal/services/llm"
	"sentinel/internal/services/whisperx"
	"sentinel/internal/unit"
)

// Completer issues JSON-only text completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ConversationCompleter issues JSON-only completions over a message history.
type ConversationCompleter interface {
	CompleteJSONMessages(ctx context.Context, systemPrompt string, history []llm.Message) (string, error)
}

// VisionCompleter issues JSON-only completions that include images.
type VisionCompleter interface {
	CompleteVisionJSON(ctx context.Context, systemPrompt, userPrompt string, imagePaths []string) (string, error)
}

// Transcriber converts an audio file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, source, outputDir string) (whisperx.Result, error)
}

// HealthPinger is implemented by model clients that can verify credentials.
type HealthPinger interface {
	HealthCheck(ctx context.Context) error
}

type base struct {
	logger *slog.Logger
}

func (b *base) SetLogger(logger *slog.Logger) {
	b.logger = logger
}

func (b *base) log() *slog.Logger {
	if b.logger == nil {
		return logging.NewNop()
	}
	return b.logger
}

// complete sends one prompt pair and decodes the reply into target.
// Transport errors keep their markers so throttling still aborts the run.
func complete(ctx context.Context, client Completer, name unit.Name, system, user string, target any) error {
	if client == nil {
		return services.Wrap(services.ErrConfiguration, string(name), "complete", "llm client not configured", nil)
	}
	content, err := client.CompleteJSON(ctx, system, user)
	if err != nil {
		return err
	}
	return decode(name, content, target)
}

func decode(name unit.Name, content string, target any) error {
	if err := llm.DecodeLLMJSON(content, target); err != nil {
		return services.Wrap(services.ErrValidation, string(name), "parse response", "", err)
	}
	return nil
}

func llmHealth(ctx context.Context, name unit.Name, client any) unit.Health {
	pinger, ok := client.(HealthPinger)
	if !ok || pinger == nil {
		return unit.Unhealthy(name, "llm client not configured")
	}
	if err := pinger.HealthCheck(ctx); err != nil {
		return unit.Unhealthy(name, err.Error())
	}
	return unit.Healthy(name)
}

// transcriptFor returns the audio unit's transcript or an error when the
// transcript carries no text.
func transcriptFor(in unit.Inputs) (Transcript, error) {
	transcript, err := unit.Input[Transcript](in, unit.Audio)
	if err != nil {
		return transcript, err
	}
	if strings.TrimSpace(transcript.FullText) == "" {
		return transcript, services.Wrap(services.ErrValidation, "agents", "transcript", "transcript is empty", nil)
	}
	return transcript, nil
}

// truncate keeps at most limit runes of text.
func truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// normalizeList trims, lowercases and de-duplicates model-supplied labels
// while preserving their order.
func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		clean := strings.ToLower(strings.Join(strings.Fields(value), " "))
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if clean := strings.TrimSpace(value); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func formatList(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

func timestampedTranscript(chunks []Chunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "[%.1fs - %.1fs] %s\n", chunk.Start, chunk.End, chunk.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
