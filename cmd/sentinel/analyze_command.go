package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sentinel/internal/index"
	"sentinel/internal/pipeline"
	"sentinel/internal/workflow"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var mediaID string
	var noVision, noEmotion, noRisk bool
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "analyze <video|url>",
		Short: "Run the analysis pipeline over a media file or YouTube URL",
		Long: `Extract audio and frames from a media file, run every enabled analysis
unit, and archive the report in the local index.

An http(s) URL is downloaded with yt-dlp into the staging workspace first;
the archived report records whether the source was local or remote.

A run aborted by provider rate limiting is retried from the start after
workflow.rate_limit_cooldown_seconds, up to workflow.rate_limit_retries times.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireLLM(); err != nil {
				return configFailure(err)
			}
			if noVision {
				cfg.Units.VisionEnabled = false
			}
			if noEmotion {
				cfg.Units.EmotionEnabled = false
			}
			if noRisk {
				cfg.Units.RiskEnabled = false
			}
			if strings.TrimSpace(metricsFile) != "" {
				cfg.Metrics.TextfilePath = metricsFile
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := index.Open(cfg)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer store.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := workflow.NewRunner(cfg, store, workflow.NewDependencies(cfg), logger)
			outcome, err := runner.Analyze(runCtx, workflow.Request{Path: args[0], MediaID: mediaID})
			if err != nil {
				var rl *pipeline.RateLimitedError
				switch {
				case errors.As(err, &rl):
					return fmt.Errorf("analysis aborted: %s unit still rate limited after %d retries; try again later: %w",
						rl.Unit, cfg.Workflow.RateLimitRetries, err)
				case errors.Is(err, context.Canceled):
					return fmt.Errorf("analysis interrupted: %w", err)
				}
				return err
			}

			if ctx.JSONMode() {
				return writeJSON(cmd, outcome.Report)
			}
			out := cmd.OutOrStdout()
			renderReport(out, outcome.Report, shouldColorize(out))
			summary := outcome.Results.Summary()
			fmt.Fprintf(out, "Media ID: %s (%d succeeded, %d failed, %d skipped", outcome.MediaID, summary.Succeeded, summary.Failed, summary.Skipped)
			if outcome.Attempts > 1 {
				fmt.Fprintf(out, ", %d attempts", outcome.Attempts)
			}
			fmt.Fprintln(out, ")")
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaID, "media-id", "", "Identifier for the archived report (default: random UUID)")
	cmd.Flags().BoolVar(&noVision, "no-vision", false, "Skip frame sampling and the video unit")
	cmd.Flags().BoolVar(&noEmotion, "no-emotion", false, "Skip the emotion unit")
	cmd.Flags().BoolVar(&noRisk, "no-risk", false, "Skip the risk unit")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	return cmd
}
