package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"sentinel/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndReadsEnvKey(t *testing.T) {
	t.Setenv("SENTINEL_LLM_API_KEY", "env-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "sentinel", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.DatabasePath() != filepath.Join(tempHome, ".local", "share", "sentinel", "sentinel.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if !cfg.Units.VisionEnabled || !cfg.Units.EmotionEnabled || !cfg.Units.RiskEnabled {
		t.Fatalf("expected optional units enabled by default, got %+v", cfg.Units)
	}
	if cfg.Units.TimeoutSeconds != 120 {
		t.Fatalf("expected 120s unit timeout, got %d", cfg.Units.TimeoutSeconds)
	}
	if cfg.Retrieval.TopK != 6 || cfg.Retrieval.MaxChatHistory != 10 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Sampling.FrameIntervalSeconds != 5 {
		t.Fatalf("unexpected frame interval: %d", cfg.Sampling.FrameIntervalSeconds)
	}
	if cfg.YTDLPBinary() != "yt-dlp" || cfg.DownloadTimeout().Minutes() != 15 {
		t.Fatalf("unexpected download defaults: %+v", cfg.Download)
	}
	if cfg.WhisperX.VADMethod != "silero" {
		t.Fatalf("expected silero VAD, got %q", cfg.WhisperX.VADMethod)
	}
	if err := cfg.RequireLLM(); err != nil {
		t.Fatalf("RequireLLM returned error with key set: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "sentinel.toml")

	type payload struct {
		LLM struct {
			APIKey      string `toml:"api_key"`
			Model       string `toml:"model"`
			VisionModel string `toml:"vision_model"`
		} `toml:"llm"`
		Units struct {
			VisionEnabled  bool `toml:"vision_enabled"`
			TimeoutSeconds int  `toml:"timeout_seconds"`
			Concurrency    int  `toml:"concurrency"`
		} `toml:"units"`
	}
	custom := payload{}
	custom.LLM.APIKey = "abc123"
	custom.LLM.Model = "text-model"
	custom.LLM.VisionModel = "vision-model"
	custom.Units.VisionEnabled = false
	custom.Units.TimeoutSeconds = 30
	custom.Units.Concurrency = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.LLM.APIKey != "abc123" {
		t.Fatalf("expected key from file, got %q", cfg.LLM.APIKey)
	}
	if cfg.Units.VisionEnabled {
		t.Fatal("expected vision disabled by file")
	}
	if !cfg.Units.EmotionEnabled {
		t.Fatal("expected emotion default to survive partial file")
	}
	if cfg.UnitTimeout().Seconds() != 30 {
		t.Fatalf("expected 30s unit timeout, got %s", cfg.UnitTimeout())
	}
	if got := cfg.GetLLM().Model; got != "text-model" {
		t.Fatalf("unexpected text model %q", got)
	}
	if got := cfg.VisionLLM().Model; got != "vision-model" {
		t.Fatalf("unexpected vision model %q", got)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sentinel.toml")
	if err := os.WriteFile(configPath, []byte("[units]\nturbo = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestFileKeyWinsOverEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sentinel.toml")
	if err := os.WriteFile(configPath, []byte("[llm]\napi_key = \"file-key\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SENTINEL_LLM_API_KEY", "env-key")
	t.Setenv("HF_TOKEN", "env-hf")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("expected file key, got %q", cfg.LLM.APIKey)
	}
	if cfg.WhisperX.HuggingFaceToken != "env-hf" {
		t.Fatalf("expected HF token from env, got %q", cfg.WhisperX.HuggingFaceToken)
	}
}

func TestRequireLLMWithoutKey(t *testing.T) {
	cfg := config.Default()
	err := cfg.RequireLLM()
	if err == nil {
		t.Fatal("expected error without api key")
	}
	if !strings.Contains(err.Error(), "sentinel config init") {
		t.Fatalf("expected remediation hint, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	cfg := config.Default()
	decoder := toml.NewDecoder(strings.NewReader(string(contents)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StagingDir, "sentinel") {
		t.Fatalf("expected staging dir to contain sentinel, got %q", cfg.Paths.StagingDir)
	}
	if cfg.Units.Concurrency != config.Default().Units.Concurrency {
		t.Fatalf("sample concurrency %d differs from default", cfg.Units.Concurrency)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"timeout":      func(c *config.Config) { c.Units.TimeoutSeconds = 0 },
		"concurrency":  func(c *config.Config) { c.Units.Concurrency = 0 },
		"top_k":        func(c *config.Config) { c.Retrieval.TopK = 0 },
		"frames":       func(c *config.Config) { c.Sampling.MaxFrames = -1 },
		"vad":          func(c *config.Config) { c.WhisperX.VADMethod = "webrtc" },
		"pyannote":     func(c *config.Config) { c.WhisperX.VADMethod = "pyannote" },
		"log format":   func(c *config.Config) { c.Logging.Format = "xml" },
		"cooldown":     func(c *config.Config) { c.Workflow.RateLimitCooldownSeconds = -1 },
		"rpm":          func(c *config.Config) { c.LLM.RequestsPerMinute = 0 },
		"notify":       func(c *config.Config) { c.Notifications.RequestTimeout = 0 },
		"chunk length": func(c *config.Config) { c.WhisperX.ChunkSeconds = 0 },
		"language":     func(c *config.Config) { c.WhisperX.Language = "klingon" },
		"download":     func(c *config.Config) { c.Download.TimeoutSeconds = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
