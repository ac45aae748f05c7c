package workflow

import (
	"sentinel/internal/agents"
	"sentinel/internal/config"
	"sentinel/internal/services/llm"
	"sentinel/internal/services/whisperx"
	"sentinel/internal/unit"
)

// Clients bundles the model clients built from configuration.
type Clients struct {
	Text   *llm.Client
	Vision *llm.Client
}

// NewClients builds the text and vision clients. Both talk to the same
// provider account, so they share one request pacer.
func NewClients(cfg *config.Config) Clients {
	text := cfg.GetLLM()
	vision := cfg.VisionLLM()
	limiter := llm.NewLimiter(text.RequestsPerMinute)
	return Clients{
		Text:   llm.NewClient(llmConfig(text), llm.WithRateLimiter(limiter)),
		Vision: llm.NewClient(llmConfig(vision), llm.WithRateLimiter(limiter)),
	}
}

func llmConfig(c config.LLMConfig) llm.Config {
	return llm.Config{
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Model:             c.Model,
		Referer:           c.Referer,
		Title:             c.Title,
		TimeoutSeconds:    c.TimeoutSeconds,
		RequestsPerMinute: c.RequestsPerMinute,
		MaxRetries:        c.MaxRetries,
	}
}

// NewTranscriber builds the WhisperX service from configuration.
func NewTranscriber(cfg *config.Config) *whisperx.Service {
	return whisperx.NewService(whisperx.Config{
		Model:        cfg.WhisperX.Model,
		CUDAEnabled:  cfg.WhisperX.CUDAEnabled,
		VADMethod:    cfg.WhisperX.VADMethod,
		HFToken:      cfg.WhisperX.HuggingFaceToken,
		Language:     cfg.WhisperX.Language,
		ChunkSeconds: cfg.WhisperX.ChunkSeconds,
		CacheDir:     cfg.WhisperX.CacheDir,
	})
}

// NewDependencies wires the analysis units to real collaborators.
func NewDependencies(cfg *config.Config) agents.Dependencies {
	clients := NewClients(cfg)
	return agents.Dependencies{
		Transcriber: NewTranscriber(cfg),
		Text:        clients.Text,
		Vision:      clients.Vision,
	}
}

// EnabledUnits maps the configuration toggles onto unit names. Units without
// a toggle always run when their inputs exist.
func EnabledUnits(cfg *config.Config) map[unit.Name]bool {
	return map[unit.Name]bool{
		unit.Video:   cfg.Units.VisionEnabled,
		unit.Emotion: cfg.Units.EmotionEnabled,
		unit.Risk:    cfg.Units.RiskEnabled,
	}
}
