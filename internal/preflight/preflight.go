package preflight

import (
	"context"
	"fmt"

	"sentinel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := RunLocal(ctx, cfg)
	results = append(results, CheckIndex(ctx, cfg))
	results = append(results, CheckLLM(ctx, "Text LLM", cfg.GetLLM()))

	// Only check the vision endpoint when it resolves to something the text
	// check did not already cover.
	if cfg.Units.VisionEnabled && visionUsesDistinctLLM(cfg) {
		results = append(results, CheckLLM(ctx, "Vision LLM", cfg.VisionLLM()))
	}

	return results
}

// RunLocal executes the checks that need no network access: working
// directories and external binaries.
func RunLocal(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		detail := status.Detail
		if status.Available {
			detail = status.Path
			if status.Version != "" {
				detail = fmt.Sprintf("%s (%s)", status.Path, status.Version)
			}
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: detail})
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func visionUsesDistinctLLM(cfg *config.Config) bool {
	text := cfg.GetLLM()
	vision := cfg.VisionLLM()
	return text.APIKey != vision.APIKey || text.BaseURL != vision.BaseURL || text.Model != vision.Model
}
