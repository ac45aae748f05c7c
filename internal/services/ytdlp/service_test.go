package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sentinel/internal/services"
)

func TestKind(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=abc": KindYouTube,
		"https://youtu.be/abc":                KindYouTube,
		"http://m.youtube.com/watch?v=abc":    KindYouTube,
		"https://vimeo.com/12345":             KindRemote,
		"/videos/review.mp4":                  KindLocal,
		"~/clips/a.mkv":                       KindLocal,
		"ftp://example.com/a.mp4":             KindLocal,
		"https://notyoutube.com/x":            KindRemote,
	}
	for raw, want := range cases {
		if got := Kind(raw); got != want {
			t.Fatalf("Kind(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestDownloadReadsInfoAndMedia(t *testing.T) {
	dir := t.TempDir()
	var gotName string
	var gotArgs []string
	svc := NewService(Config{Binary: "yt-dlp-custom"})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		info := `{"id":"abc","title":" Budget talk ","uploader":"Finance","duration":42.5,"ext":"webm","webpage_url":"https://www.youtube.com/watch?v=abc"}`
		if err := os.WriteFile(filepath.Join(dir, "source.info.json"), []byte(info), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "source.webm"), []byte("media"), 0o644)
	})

	result, err := svc.Download(context.Background(), "https://youtu.be/abc", dir)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if gotName != "yt-dlp-custom" {
		t.Fatalf("unexpected binary %q", gotName)
	}
	if result.Path != filepath.Join(dir, "source.webm") {
		t.Fatalf("unexpected path %q", result.Path)
	}
	if result.Title != "Budget talk" || result.Uploader != "Finance" || result.DurationSeconds != 42.5 || result.ID != "abc" {
		t.Fatalf("unexpected result %+v", result)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"--no-playlist", "--write-info-json", "-f " + DefaultFormat, "-o " + filepath.Join(dir, "source.%(ext)s")} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %v", want, gotArgs)
		}
	}
	if gotArgs[len(gotArgs)-1] != "https://youtu.be/abc" {
		t.Fatalf("expected URL last, got %v", gotArgs)
	}
}

func TestDownloadFallsBackToGlobWhenExtDiffers(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Config{})
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		if err := os.WriteFile(filepath.Join(dir, "source.info.json"), []byte(`{"id":"x","ext":"mp4"}`), 0o644); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "source.mkv"), []byte("merged"), 0o644)
	})

	result, err := svc.Download(context.Background(), "https://vimeo.com/1", dir)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if filepath.Base(result.Path) != "source.mkv" {
		t.Fatalf("unexpected path %q", result.Path)
	}
	if result.WebpageURL != "https://vimeo.com/1" {
		t.Fatalf("expected request URL as fallback, got %q", result.WebpageURL)
	}
}

func TestDownloadFailures(t *testing.T) {
	dir := t.TempDir()

	svc := NewService(Config{})
	if _, err := svc.Download(context.Background(), "/local/file.mp4", dir); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for non-URL, got %v", err)
	}

	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 1: ERROR: Video unavailable")
	})
	if _, err := svc.Download(context.Background(), "https://youtu.be/gone", dir); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	svc.WithCommandRunner(func(context.Context, string, ...string) error { return nil })
	_, err := svc.Download(context.Background(), "https://youtu.be/empty", dir)
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "info file") {
		t.Fatalf("expected missing info error, got %v", err)
	}
}

func TestDownloadTimeout(t *testing.T) {
	svc := NewService(Config{Timeout: 20 * time.Millisecond})
	svc.WithCommandRunner(func(ctx context.Context, _ string, _ ...string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	_, err := svc.Download(context.Background(), "https://youtu.be/slow", t.TempDir())
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
}
