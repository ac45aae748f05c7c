package sampler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"sentinel/internal/media/ffprobe"
	"sentinel/internal/services"
)

// fakeFFmpeg writes the output file(s) ffmpeg would produce.
func fakeFFmpeg(t *testing.T, frames int, calls *[][]string) CommandRunner {
	t.Helper()
	return func(_ context.Context, _ string, args ...string) error {
		*calls = append(*calls, args)
		dest := args[len(args)-1]
		if strings.Contains(dest, "%04d") {
			for i := 1; i <= frames; i++ {
				path := fmt.Sprintf(dest, i)
				if err := os.WriteFile(path, []byte("jpg"), 0o644); err != nil {
					return err
				}
			}
			return nil
		}
		return os.WriteFile(dest, []byte("wav"), 0o644)
	}
}

func inspectWith(streams ...ffprobe.Stream) func(context.Context, string, string) (ffprobe.Result, error) {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: streams, Format: ffprobe.Format{Duration: "42.5"}}, nil
	}
}

func TestPrepareExtractsAudioAndFrames(t *testing.T) {
	work := t.TempDir()
	var calls [][]string
	s := New(Options{FrameIntervalSeconds: 10, MaxFrames: 3, FrameWidth: 512}, nil)
	s.WithCommandRunner(fakeFFmpeg(t, 5, &calls))
	s.WithInspector(inspectWith(
		ffprobe.Stream{CodecType: "video", CodecName: "h264"},
		ffprobe.Stream{CodecType: "audio", CodecName: "aac"},
	))

	src, err := s.Prepare(context.Background(), Request{MediaID: "m1", Path: "/in.mp4", WorkDir: work})
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if src.AudioPath != filepath.Join(work, audioFileName) {
		t.Fatalf("unexpected audio path %q", src.AudioPath)
	}
	if len(src.Frames) != 3 {
		t.Fatalf("expected frames capped at 3, got %d", len(src.Frames))
	}
	if !slices.IsSorted(src.Frames) {
		t.Fatalf("frames not ordered: %v", src.Frames)
	}
	if src.DurationSeconds != 42.5 || src.MediaID != "m1" {
		t.Fatalf("unexpected source %+v", src)
	}
	if len(calls) != 2 {
		t.Fatalf("expected audio and frame invocations, got %d", len(calls))
	}
	frameCall := strings.Join(calls[1], " ")
	if !strings.Contains(frameCall, "fps=1/10,scale=512:-2") || !strings.Contains(frameCall, "-frames:v 3") {
		t.Fatalf("unexpected frame args %q", frameCall)
	}
}

func TestPrepareAudioOnlyFile(t *testing.T) {
	var calls [][]string
	s := New(Options{MaxFrames: 4}, nil)
	s.WithCommandRunner(fakeFFmpeg(t, 0, &calls))
	s.WithInspector(inspectWith(
		ffprobe.Stream{CodecType: "audio", CodecName: "mp3"},
		ffprobe.Stream{CodecType: "video", CodecName: "mjpeg"},
	))

	src, err := s.Prepare(context.Background(), Request{MediaID: "m2", Path: "/in.mp3", WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if !src.HasAudio() || src.HasFrames() {
		t.Fatalf("expected audio without frames, got %+v", src)
	}
	if len(calls) != 1 {
		t.Fatalf("expected only audio extraction, got %d calls", len(calls))
	}
}

func TestPrepareSkipFrames(t *testing.T) {
	var calls [][]string
	s := New(Options{MaxFrames: 4}, nil)
	s.WithCommandRunner(fakeFFmpeg(t, 2, &calls))
	s.WithInspector(inspectWith(ffprobe.Stream{CodecType: "video", CodecName: "vp9"}))

	src, err := s.Prepare(context.Background(), Request{Path: "/silent.webm", WorkDir: t.TempDir(), SkipFrames: true})
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if src.HasAudio() || src.HasFrames() || len(calls) != 0 {
		t.Fatalf("expected nothing extracted, got %+v after %d calls", src, len(calls))
	}
}

func TestPrepareFrameFailureIsNotFatal(t *testing.T) {
	s := New(Options{MaxFrames: 4}, nil)
	s.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		dest := args[len(args)-1]
		if strings.Contains(dest, "%04d") {
			return errors.New("decoder missing")
		}
		return os.WriteFile(dest, nil, 0o644)
	})
	s.WithInspector(inspectWith(
		ffprobe.Stream{CodecType: "video", CodecName: "av1"},
		ffprobe.Stream{CodecType: "audio", CodecName: "opus"},
	))

	src, err := s.Prepare(context.Background(), Request{Path: "/in.mkv", WorkDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if !src.HasAudio() || src.HasFrames() {
		t.Fatalf("expected audio only, got %+v", src)
	}
}

func TestPrepareRejectsStreamlessFile(t *testing.T) {
	s := New(Options{}, nil)
	s.WithInspector(inspectWith())
	_, err := s.Prepare(context.Background(), Request{Path: "/empty.bin", WorkDir: t.TempDir()})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractAudioFailureIsExternalTool(t *testing.T) {
	s := New(Options{}, nil)
	s.WithCommandRunner(func(context.Context, string, ...string) error { return errors.New("exit status 1") })
	_, err := s.ExtractAudio(context.Background(), "/in.mp4", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
