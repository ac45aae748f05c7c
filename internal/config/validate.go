package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"sentinel/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateWhisperX(); err != nil {
		return err
	}
	if err := c.validateUnits(); err != nil {
		return err
	}
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"download.timeout_seconds": c.Download.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	if err := ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":     c.LLM.TimeoutSeconds,
		"llm.requests_per_minute": c.LLM.RequestsPerMinute,
	}); err != nil {
		return err
	}
	if c.LLM.MaxRetries < 0 {
		return errors.New("llm.max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateWhisperX() error {
	if !slices.Contains([]string{"silero", "pyannote"}, c.WhisperX.VADMethod) {
		return fmt.Errorf("whisperx.vad_method must be silero or pyannote, got %q", c.WhisperX.VADMethod)
	}
	if c.WhisperX.VADMethod == "pyannote" && c.WhisperX.HuggingFaceToken == "" {
		return errors.New("whisperx.hf_token must be set when whisperx.vad_method is pyannote (or set HF_TOKEN)")
	}
	if c.WhisperX.Language != "" && language.Normalize(c.WhisperX.Language) == "" {
		return fmt.Errorf("whisperx.language %q is not a recognized language code (leave empty to auto-detect)", c.WhisperX.Language)
	}
	if c.WhisperX.ChunkSeconds <= 0 {
		return errors.New("whisperx.chunk_seconds must be positive")
	}
	return nil
}

func (c *Config) validateUnits() error {
	if c.Units.TimeoutSeconds <= 0 {
		return errors.New("units.timeout_seconds must be positive")
	}
	if c.Units.Concurrency < 1 {
		return errors.New("units.concurrency must be >= 1")
	}
	return nil
}

func (c *Config) validateSampling() error {
	return ensurePositiveMap(map[string]int{
		"sampling.frame_interval_seconds": c.Sampling.FrameIntervalSeconds,
		"sampling.max_frames":             c.Sampling.MaxFrames,
		"sampling.frame_width":            c.Sampling.FrameWidth,
	})
}

func (c *Config) validateRetrieval() error {
	if c.Retrieval.TopK <= 0 {
		return errors.New("retrieval.top_k must be positive")
	}
	if c.Retrieval.MaxChatHistory < 0 {
		return errors.New("retrieval.max_chat_history must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.RateLimitCooldownSeconds < 0 {
		return errors.New("workflow.rate_limit_cooldown_seconds must be >= 0")
	}
	if c.Workflow.RateLimitRetries < 0 {
		return errors.New("workflow.rate_limit_retries must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"workflow.staging_max_age_hours": c.Workflow.StagingMaxAgeHours,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
