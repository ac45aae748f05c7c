package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"sentinel/internal/services"
)

const (
	// DefaultBinary is the executable looked up on PATH.
	DefaultBinary = "yt-dlp"
	// DefaultFormat prefers a single mp4 and falls back to merged streams.
	DefaultFormat = "mp4/bestaudio+best"

	outputStem   = "source"
	infoSuffix   = ".info.json"
	outputSuffix = ".%(ext)s"
)

// Source kinds recorded with archived analyses.
const (
	KindLocal   = "local"
	KindYouTube = "youtube"
	KindRemote  = "remote"
)

var youtubeHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// IsURL reports whether raw is an http(s) URL with a host.
func IsURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Kind classifies a media location as local, youtube or another remote site.
func Kind(raw string) string {
	if !IsURL(raw) {
		return KindLocal
	}
	u, _ := url.Parse(strings.TrimSpace(raw))
	host := strings.ToLower(u.Hostname())
	for _, h := range youtubeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return KindYouTube
		}
	}
	return KindRemote
}

// Config controls the yt-dlp invocation.
type Config struct {
	Binary  string
	Format  string
	Timeout time.Duration
}

// Result describes a finished download.
type Result struct {
	Path            string
	ID              string
	Title           string
	Uploader        string
	DurationSeconds float64
	WebpageURL      string
}

// Service downloads remote media with yt-dlp.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a downloader with the given configuration.
func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = DefaultFormat
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Binary returns the configured executable.
func (s *Service) Binary() string {
	return s.cfg.Binary
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Download fetches rawURL into workDir and returns the local media path.
func (s *Service) Download(ctx context.Context, rawURL, workDir string) (Result, error) {
	var result Result
	rawURL = strings.TrimSpace(rawURL)
	if !IsURL(rawURL) {
		return result, services.Wrap(services.ErrValidation, "ytdlp", "download", fmt.Sprintf("%q is not an http(s) URL", rawURL), nil)
	}
	if strings.TrimSpace(workDir) == "" {
		return result, services.Wrap(services.ErrValidation, "ytdlp", "download", "work directory required", nil)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return result, fmt.Errorf("download: ensure work dir: %w", err)
	}

	runCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if err := s.run(runCtx, s.cfg.Binary, s.buildArgs(rawURL, workDir)...); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if runCtx.Err() != nil {
			return result, services.Wrap(services.ErrTimeout, "ytdlp", "download", fmt.Sprintf("download exceeded %s", s.cfg.Timeout), err)
		}
		return result, services.Wrap(services.ErrExternalTool, "ytdlp", "download", "yt-dlp run failed", err)
	}

	info, err := readInfo(filepath.Join(workDir, outputStem+infoSuffix))
	if err != nil {
		return result, err
	}
	path, err := locateMedia(workDir, info.Ext)
	if err != nil {
		return result, err
	}
	result = Result{
		Path:            path,
		ID:              info.ID,
		Title:           strings.TrimSpace(info.Title),
		Uploader:        strings.TrimSpace(info.Uploader),
		DurationSeconds: info.Duration,
		WebpageURL:      info.WebpageURL,
	}
	if result.WebpageURL == "" {
		result.WebpageURL = rawURL
	}
	return result, nil
}

func (s *Service) buildArgs(rawURL, workDir string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--quiet",
		"--restrict-filenames",
		"--write-info-json",
		"-f", s.cfg.Format,
		"-o", filepath.Join(workDir, outputStem+outputSuffix),
		rawURL,
	}
}

type info struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	Ext        string  `json:"ext"`
	WebpageURL string  `json:"webpage_url"`
}

func readInfo(path string) (info, error) {
	var meta info
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, services.Wrap(services.ErrExternalTool, "ytdlp", "read info", "yt-dlp wrote no info file", nil)
		}
		return meta, fmt.Errorf("read download info: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, services.Wrap(services.ErrExternalTool, "ytdlp", "read info", "decode info json", err)
	}
	return meta, nil
}

// locateMedia finds the downloaded file. The info ext is tried first because
// merged downloads may leave the container extension different from the
// requested format.
func locateMedia(workDir, ext string) (string, error) {
	if ext = strings.TrimSpace(ext); ext != "" {
		candidate := filepath.Join(workDir, outputStem+"."+ext)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() && st.Size() > 0 {
			return candidate, nil
		}
	}
	matches, err := filepath.Glob(filepath.Join(workDir, outputStem+".*"))
	if err != nil {
		return "", fmt.Errorf("locate download: %w", err)
	}
	slices.Sort(matches)
	for _, m := range matches {
		if strings.HasSuffix(m, infoSuffix) || strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		if st, err := os.Stat(m); err == nil && !st.IsDir() && st.Size() > 0 {
			return m, nil
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "ytdlp", "locate media", "yt-dlp produced no media file", nil)
}
