package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"

	"sentinel/internal/logging"
	"sentinel/internal/media/ffprobe"
	"sentinel/internal/services"
	"sentinel/internal/unit"
)

const (
	audioFileName = "audio.wav"
	framesDirName = "frames"
	framePattern  = "frame_%04d.jpg"
)

// Options controls frame sampling.
type Options struct {
	FFmpegBinary         string
	FFprobeBinary        string
	FrameIntervalSeconds int
	MaxFrames            int
	FrameWidth           int
}

// Request names the media to prepare and where to put derived files.
type Request struct {
	MediaID string
	Path    string
	WorkDir string
	// SkipFrames disables frame sampling, e.g. when the vision unit is off.
	SkipFrames bool
}

// Sampler turns a media file into the Source handed to the pipeline.
type Sampler struct {
	opts    Options
	logger  *slog.Logger
	run     CommandRunner
	inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// New constructs a Sampler. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Sampler {
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.FFprobeBinary == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if opts.FrameIntervalSeconds <= 0 {
		opts.FrameIntervalSeconds = 5
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sampler{
		opts:    opts,
		logger:  logger,
		run:     runCommand,
		inspect: ffprobe.Inspect,
	}
}

// WithCommandRunner swaps the ffmpeg executor (for tests).
func (s *Sampler) WithCommandRunner(run CommandRunner) {
	if run != nil {
		s.run = run
	}
}

// WithInspector swaps the ffprobe inspector (for tests).
func (s *Sampler) WithInspector(inspect func(ctx context.Context, binary, path string) (ffprobe.Result, error)) {
	if inspect != nil {
		s.inspect = inspect
	}
}

// Prepare inspects req.Path and extracts whichever inputs the container can
// supply. A file without audio yields a Source with no AudioPath; the audio
// unit then reports itself not ready instead of failing.
func (s *Sampler) Prepare(ctx context.Context, req Request) (unit.Source, error) {
	src := unit.Source{MediaID: req.MediaID, MediaPath: req.Path}
	if req.WorkDir == "" {
		return src, services.Wrap(services.ErrValidation, "sampler", "prepare", "work directory required", nil)
	}
	info, err := s.inspect(ctx, s.opts.FFprobeBinary, req.Path)
	if err != nil {
		return src, err
	}
	if duration := info.DurationSeconds(); !math.IsNaN(duration) {
		src.DurationSeconds = duration
	}
	if !info.HasAudio() && !info.HasVideo() {
		return src, services.Wrap(services.ErrValidation, "sampler", "prepare", "no audio or video streams", nil)
	}

	if info.HasAudio() {
		path, err := s.ExtractAudio(ctx, req.Path, req.WorkDir)
		if err != nil {
			return src, err
		}
		src.AudioPath = path
	} else {
		s.logger.Info("media has no audio stream",
			logging.String(logging.FieldEventType, "audio_absent"),
			logging.String("path", req.Path),
		)
	}

	if info.HasVideo() && !req.SkipFrames {
		frames, err := s.SampleFrames(ctx, req.Path, req.WorkDir)
		if err != nil {
			// Frames only feed the optional vision unit.
			s.logger.Warn("frame sampling failed; vision analysis will be skipped",
				logging.String(logging.FieldEventType, "frame_sampling_failed"),
				logging.String(logging.FieldErrorHint, "check that ffmpeg can decode the video stream"),
				logging.Error(err),
			)
		} else {
			src.Frames = frames
		}
	}

	s.logger.Info("media prepared",
		logging.String(logging.FieldEventType, "media_prepared"),
		logging.Bool("audio", src.HasAudio()),
		logging.Int("frames", len(src.Frames)),
		logging.Float64("duration_seconds", src.DurationSeconds),
	)
	return src, nil
}

// ExtractAudio writes the first audio stream of source to workDir/audio.wav.
func (s *Sampler) ExtractAudio(ctx context.Context, source, workDir string) (string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("extract audio: ensure work dir: %w", err)
	}
	dest := filepath.Join(workDir, audioFileName)
	if err := s.run(ctx, s.opts.FFmpegBinary, audioArgs(source, dest)...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", services.Wrap(services.ErrExternalTool, "ffmpeg", "extract audio", "", err)
	}
	return dest, nil
}

// SampleFrames writes up to MaxFrames JPEGs into workDir/frames and returns
// their paths in presentation order. Stale frames from an earlier attempt
// are removed first.
func (s *Sampler) SampleFrames(ctx context.Context, source, workDir string) ([]string, error) {
	if s.opts.MaxFrames <= 0 {
		return nil, nil
	}
	dir := filepath.Join(workDir, framesDirName)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("sample frames: reset dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sample frames: ensure dir: %w", err)
	}
	args := frameArgs(source, filepath.Join(dir, framePattern), s.opts.FrameIntervalSeconds, s.opts.MaxFrames, s.opts.FrameWidth)
	if err := s.run(ctx, s.opts.FFmpegBinary, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, "ffmpeg", "sample frames", "", err)
	}
	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("sample frames: list: %w", err)
	}
	if len(frames) == 0 {
		return nil, errors.New("sample frames: ffmpeg produced no images")
	}
	slices.Sort(frames)
	if len(frames) > s.opts.MaxFrames {
		frames = frames[:s.opts.MaxFrames]
	}
	return frames, nil
}
