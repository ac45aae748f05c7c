package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/agents"
	"sentinel/internal/config"
	"sentinel/internal/index"
	"sentinel/internal/logging"
	"sentinel/internal/media/sampler"
	"sentinel/internal/metrics"
	"sentinel/internal/notifications"
	"sentinel/internal/pipeline"
	"sentinel/internal/preflight"
	"sentinel/internal/services"
	"sentinel/internal/services/ytdlp"
	"sentinel/internal/staging"
	"sentinel/internal/unit"
)

// Request names the media to analyze.
type Request struct {
	// Path is a local file or an http(s) URL fetched with yt-dlp.
	Path string
	// MediaID keys the index and archive; a random id is generated when empty.
	MediaID string
}

// Outcome is the result of a completed analysis.
type Outcome struct {
	MediaID  string
	Source   unit.Source
	Origin   pipeline.Origin
	Results  *pipeline.Results
	Report   pipeline.Report
	Attempts int
}

// Runner coordinates one analysis end to end.
type Runner struct {
	cfg       *config.Config
	store     *index.Store
	deps      agents.Dependencies
	sampler   *sampler.Sampler
	download  *ytdlp.Service
	notifier  notifications.Service
	metrics   *metrics.Recorder
	logger    *slog.Logger
	preflight func(ctx context.Context, cfg *config.Config) []preflight.Result
	remote    func(ctx context.Context, cfg *config.Config) preflight.Result
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSampler replaces the ffmpeg-backed sampler.
func WithSampler(s *sampler.Sampler) Option {
	return func(r *Runner) {
		if s != nil {
			r.sampler = s
		}
	}
}

// WithDownloader replaces the yt-dlp service used for URL sources.
func WithDownloader(d *ytdlp.Service) Option {
	return func(r *Runner) {
		if d != nil {
			r.download = d
		}
	}
}

// WithNotifier replaces the configured notification service.
func WithNotifier(n notifications.Service) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithMetrics replaces the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithSleep overrides the rate-limit cooldown wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// WithClock overrides the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner builds a Runner from configuration. store receives transcripts
// and reports; deps supplies the unit collaborators.
func NewRunner(cfg *config.Config, store *index.Store, deps agents.Dependencies, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:   cfg,
		store: store,
		deps:  deps,
		sampler: sampler.New(sampler.Options{
			FFmpegBinary:         cfg.FFmpegBinary(),
			FFprobeBinary:        cfg.FFprobeBinary(),
			FrameIntervalSeconds: cfg.Sampling.FrameIntervalSeconds,
			MaxFrames:            cfg.Sampling.MaxFrames,
			FrameWidth:           cfg.Sampling.FrameWidth,
		}, logging.NewComponentLogger(logger, "sampler")),
		download: ytdlp.NewService(ytdlp.Config{
			Binary:  cfg.YTDLPBinary(),
			Format:  cfg.Download.Format,
			Timeout: cfg.DownloadTimeout(),
		}),
		notifier:  notifications.NewService(cfg),
		metrics:   metrics.NewRecorder(),
		logger:    logging.NewComponentLogger(logger, "workflow"),
		preflight: preflight.RunLocal,
		remote:    preflight.CheckDownloader,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics exposes the recorder so callers can export or inspect it.
func (r *Runner) Metrics() *metrics.Recorder {
	return r.metrics
}

// Analyze runs the full pipeline over req.Path. A run that stays rate limited
// after the configured retries returns *pipeline.RateLimitedError and
// archives nothing.
func (r *Runner) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	origin, err := r.resolveSource(req.Path)
	if err != nil {
		return nil, err
	}
	remote := origin.Kind != ytdlp.KindLocal
	mediaID := strings.TrimSpace(req.MediaID)
	if mediaID == "" {
		mediaID = uuid.NewString()
	}
	ctx = services.WithMediaID(ctx, mediaID)
	logger := logging.WithContext(ctx, r.logger)
	defer r.exportMetrics(logger)

	if err := r.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "prepare directories", "", err)
	}
	if err := r.runPreflight(ctx, logger, remote); err != nil {
		r.fail(ctx, logger, "preflight", err)
		return nil, err
	}

	ws, err := staging.Acquire(r.cfg.Paths.StagingDir, mediaID, r.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ws.Release(r.cfg.Workflow.KeepStaging)
	}()

	logger.Info("analysis started",
		logging.String("source", origin.Location),
		logging.String("source_kind", origin.Kind),
		logging.String(logging.FieldEventType, "analysis_start"),
	)
	path := origin.Location
	if remote {
		downloaded, err := r.download.Download(ctx, origin.Location, ws.Dir)
		if err != nil {
			r.fail(ctx, logger, "download", err)
			return nil, err
		}
		path = downloaded.Path
		origin.Title = downloaded.Title
		logger.Info("remote media downloaded",
			logging.String("path", path),
			logging.String("title", downloaded.Title),
			logging.Float64("duration_seconds", downloaded.DurationSeconds),
			logging.String(logging.FieldEventType, "download_complete"),
		)
	}
	src, err := r.sampler.Prepare(ctx, sampler.Request{
		MediaID:    mediaID,
		Path:       path,
		WorkDir:    ws.Dir,
		SkipFrames: !r.cfg.Units.VisionEnabled,
	})
	if err != nil {
		r.fail(ctx, logger, "ingest", err)
		return nil, err
	}

	reg, err := agents.NewRegistry(r.deps)
	if err != nil {
		return nil, err
	}
	orch, err := pipeline.New(reg, pipeline.Options{
		Enabled:     EnabledUnits(r.cfg),
		Timeout:     r.cfg.UnitTimeout(),
		Concurrency: r.cfg.Units.Concurrency,
		Logger:      r.logger,
		Observers:   []pipeline.Observer{r.store.TranscriptObserver()},
		Listeners:   []pipeline.Listener{r.metrics},
		Now:         r.now,
	})
	if err != nil {
		return nil, err
	}

	attempts := 1
	cooldown := r.cfg.RateLimitCooldown()
	results, err := pipeline.RunWithRetry(ctx, orch, src, pipeline.RetryPolicy{
		Retries:  r.cfg.Workflow.RateLimitRetries,
		Cooldown: cooldown,
		Sleep:    r.sleep,
		OnRetry: func(attempt int, rl *pipeline.RateLimitedError) {
			attempts++
			r.metrics.RunFinished(metrics.RunRateLimited, float64(r.now().Unix()))
			logging.WarnWithContext(logger, "run rate limited; retrying after cooldown", "analysis_rate_limited",
				logging.String(logging.FieldUnit, string(rl.Unit)),
				logging.Int("attempt", attempt),
				logging.Duration("cooldown", cooldown),
				logging.String(logging.FieldErrorHint, "lower llm.requests_per_minute or raise workflow.rate_limit_cooldown_seconds"),
				logging.String(logging.FieldImpact, "analysis restarts from the first unit"),
			)
			r.publish(ctx, logger, notifications.EventRateLimited, notifications.Payload{
				"mediaID": mediaID,
				"unit":    string(rl.Unit),
				"retryIn": cooldown.String(),
			})
		},
	})
	if err != nil {
		var rl *pipeline.RateLimitedError
		switch {
		case errors.As(err, &rl):
			r.metrics.RunFinished(metrics.RunRateLimited, float64(r.now().Unix()))
			logging.ErrorWithContext(logger, "analysis aborted: rate limited", "analysis_rate_limited",
				logging.String(logging.FieldUnit, string(rl.Unit)),
				logging.Int("attempts", attempts),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "retry later or raise workflow.rate_limit_retries"),
			)
			r.publish(ctx, logger, notifications.EventRateLimited, notifications.Payload{
				"mediaID": mediaID,
				"unit":    string(rl.Unit),
			})
		case errors.Is(err, context.Canceled):
			r.metrics.RunFinished(metrics.RunFailed, float64(r.now().Unix()))
		default:
			r.fail(ctx, logger, "analysis", err)
		}
		return nil, err
	}

	report := results.Report(r.now())
	report.Origin = &origin
	if err := r.store.SaveReport(ctx, report); err != nil {
		r.fail(ctx, logger, "archive", err)
		return nil, err
	}
	r.metrics.RunFinished(metrics.RunCompleted, float64(r.now().Unix()))

	summary := results.Summary()
	payload := notifications.Payload{
		"mediaID":   mediaID,
		"source":    origin.Location,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}
	if out, ok := results.Get(unit.Risk); ok {
		if risk, ok := unit.ResultAs[agents.Risk](out); ok {
			payload["riskLevel"] = risk.Level
			if risk.Level == agents.RiskHigh {
				logging.WarnWithContext(logger, "high risk content detected", "risk_high",
					logging.Alert("risk_high"),
					logging.Int("flags", len(risk.Flags)),
					logging.String(logging.FieldErrorHint, "review the risk flags with sentinel show"),
					logging.String(logging.FieldImpact, "content may need manual review"),
				)
			}
		}
	}
	r.publish(ctx, logger, notifications.EventAnalysisCompleted, payload)
	logger.Info("analysis completed",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("attempts", attempts),
		logging.String(logging.FieldEventType, "analysis_complete"),
	)

	return &Outcome{
		MediaID:  mediaID,
		Source:   src,
		Origin:   origin,
		Results:  results,
		Report:   report,
		Attempts: attempts,
	}, nil
}

// resolveSource classifies raw as a URL or a local file. Local paths are
// expanded and must name an existing regular file; URLs are checked when
// downloaded.
func (r *Runner) resolveSource(raw string) (pipeline.Origin, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pipeline.Origin{}, services.Wrap(services.ErrValidation, "workflow", "resolve source", "media path required", nil)
	}
	if kind := ytdlp.Kind(raw); kind != ytdlp.KindLocal {
		return pipeline.Origin{Kind: kind, Location: raw}, nil
	}
	path, err := config.ExpandPath(raw)
	if err != nil {
		return pipeline.Origin{}, services.Wrap(services.ErrValidation, "workflow", "resolve source", "", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pipeline.Origin{}, services.Wrap(services.ErrNotFound, "workflow", "resolve source", fmt.Sprintf("media file %s does not exist", path), nil)
		}
		return pipeline.Origin{}, fmt.Errorf("inspect media: %w", err)
	}
	if info.IsDir() {
		return pipeline.Origin{}, services.Wrap(services.ErrValidation, "workflow", "resolve source", fmt.Sprintf("%s is a directory", path), nil)
	}
	return pipeline.Origin{Kind: ytdlp.KindLocal, Location: path}, nil
}

// runPreflight validates local tooling before staging anything. URL sources
// additionally require yt-dlp.
func (r *Runner) runPreflight(ctx context.Context, logger *slog.Logger, remote bool) error {
	var results []preflight.Result
	if r.preflight != nil {
		results = r.preflight(ctx, r.cfg)
	}
	if remote && r.remote != nil {
		results = append(results, r.remote(ctx, r.cfg))
	}
	var failures []string
	for _, res := range results {
		if res.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", res.Name),
				logging.String("detail", res.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", res.Name),
			logging.String("detail", res.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "run sentinel doctor and fix the reported issue"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", res.Name, res.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "preflight",
			"preflight checks failed: "+strings.Join(failures, "; "), nil)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, logger *slog.Logger, stage string, err error) {
	r.metrics.RunFinished(metrics.RunFailed, float64(r.now().Unix()))
	logging.ErrorWithContext(logger, "analysis failed", "analysis_failed",
		logging.String("stage", stage),
		logging.Error(err),
		logging.String("error_class", services.Classify(err)),
	)
	r.publish(ctx, logger, notifications.EventError, notifications.Payload{
		"context": stage,
		"error":   err,
	})
}

func (r *Runner) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("analysis canceled, could not send notification", logging.String("event", string(event)))
			return
		}
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func (r *Runner) exportMetrics(logger *slog.Logger) {
	path := strings.TrimSpace(r.cfg.Metrics.TextfilePath)
	if path == "" {
		return
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		logging.WarnWithContext(logger, "metrics export failed", "metrics_export_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metrics.textfile_path permissions"),
			logging.String(logging.FieldImpact, "run metrics not exported"),
		)
	}
}
