package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"sentinel/internal/config"
	"sentinel/internal/deps"
	"sentinel/internal/index"
	"sentinel/internal/services/llm"
	"sentinel/internal/services/whisperx"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1), llm.WithRateLimiter(nil))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", cfg.Model)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckIndex opens the SQLite index, which also verifies its schema version.
func CheckIndex(ctx context.Context, cfg *config.Config) Result {
	const name = "Index database"
	store, err := index.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	stats, err := store.Stats(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d media, %d analyses)", store.Path(), stats.Media, stats.Analyses)}
}

// CheckSystemDeps evaluates the external binaries ingestion and transcription
// shell out to.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction and frame sampling",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "uvx",
			Command:     whisperx.UVXCommand,
			Description: "Required for WhisperX-driven transcription",
			VersionArgs: []string{"--version"},
		},
		downloaderRequirement(cfg, true),
	})
}

// CheckDownloader verifies yt-dlp is installed. It only runs for URL sources,
// so unlike the CheckSystemDeps entry a missing binary fails the check.
func CheckDownloader(ctx context.Context, cfg *config.Config) Result {
	status := deps.CheckBinaries(ctx, []deps.Requirement{downloaderRequirement(cfg, false)})[0]
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail + " (install yt-dlp to analyze URLs)"}
	}
	detail := status.Path
	if status.Version != "" {
		detail = fmt.Sprintf("%s (%s)", status.Path, status.Version)
	}
	return Result{Name: status.Name, Passed: true, Detail: detail}
}

func downloaderRequirement(cfg *config.Config, optional bool) deps.Requirement {
	return deps.Requirement{
		Name:        "yt-dlp",
		Command:     cfg.YTDLPBinary(),
		Description: "Required to analyze YouTube and other URL sources",
		Optional:    optional,
		VersionArgs: []string{"--version"},
	}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
