package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"sentinel/internal/services"
)

func TestTranscribeLoadsSegments(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "audio.wav")

	var gotArgs []string
	svc := NewService(Config{Model: "small", Language: "en-US", HFToken: "hf", ChunkSeconds: 30})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		if name != UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		gotArgs = args
		body := `{"language":"en","segments":[{"text":" Hello there. ","start":0.5,"end":1.5,"speaker":"SPEAKER_00"},{"text":"   ","start":1.5,"end":2},{"text":"General Kenobi.","start":2,"end":3.25}]}`
		return os.WriteFile(filepath.Join(dir, "audio.json"), []byte(body), 0o644)
	})

	result, err := svc.Transcribe(context.Background(), source, dir)
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if result.Language != "en" {
		t.Fatalf("unexpected language %q", result.Language)
	}
	if len(result.Segments) != 3 || result.Segments[0].Speaker != "SPEAKER_00" {
		t.Fatalf("unexpected segments %+v", result.Segments)
	}
	if got := result.Text(); got != "Hello there. General Kenobi." {
		t.Fatalf("unexpected text %q", got)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"--model small", "--language en", "--chunk_size 30", "--diarize", "--device cpu"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %v", want, gotArgs)
		}
	}
}

func TestTranscribeToolFailureIsExternalTool(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Config{})
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("exit status 1")
	})
	_, err := svc.Transcribe(context.Background(), filepath.Join(dir, "a.wav"), dir)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestTranscribeMissingOutput(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Config{})
	svc.WithCommandRunner(func(context.Context, string, ...string) error { return nil })
	if _, err := svc.Transcribe(context.Background(), filepath.Join(dir, "a.wav"), dir); err == nil {
		t.Fatal("expected error when whisperx writes no json")
	}
}

func TestBuildArgsCUDA(t *testing.T) {
	svc := NewService(Config{CUDAEnabled: true, CacheDir: "/models"})
	args := svc.buildArgs("in.wav", "out")
	if !slices.Contains(args, CUDAIndexURL) || !slices.Contains(args, CUDADevice) {
		t.Fatalf("expected CUDA index and device in %v", args)
	}
	if slices.Contains(args, "--diarize") {
		t.Fatalf("diarize requires a token: %v", args)
	}
	if i := slices.Index(args, "--model_dir"); i < 0 || args[i+1] != "/models" {
		t.Fatalf("expected model dir in %v", args)
	}
	if i := slices.Index(args, "--vad_method"); i < 0 || args[i+1] != VADMethodSilero {
		t.Fatalf("expected silero default in %v", args)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"en":    "en",
		"en-GB": "en",
		"pt_BR": "pt",
		"???":   "",
	}
	for input, want := range cases {
		if got := NormalizeLanguage(input); got != want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", input, got, want)
		}
	}
}
