package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"sentinel/internal/services"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 defaults torch.load to weights_only=true, which breaks the
	// pyannote checkpoints bundled with WhisperX.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Words   []Word  `json:"words,omitempty"`
}

// Result contains the outcome of a transcription.
type Result struct {
	Language string
	Segments []Segment
	JSONPath string
}

// Text joins the non-empty segment texts with single spaces.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Transcribe runs WhisperX over a WAV file and loads the segments it writes
// into outputDir.
func (s *Service) Transcribe(ctx context.Context, source, outputDir string) (Result, error) {
	var result Result
	if strings.TrimSpace(source) == "" {
		return result, services.Wrap(services.ErrValidation, "whisperx", "transcribe", "source path required", nil)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	if err := s.run(ctx, UVXCommand, s.buildArgs(source, outputDir)...); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, services.Wrap(services.ErrExternalTool, "whisperx", "transcribe", "whisperx run failed", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	result.JSONPath = filepath.Join(outputDir, baseName+".json")
	payload, err := loadPayload(result.JSONPath)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "whisperx", "load output", filepath.Base(result.JSONPath), err)
	}
	result.Language = payload.Language
	if result.Language == "" {
		result.Language = NormalizeLanguage(s.cfg.Language)
	}
	result.Segments = payload.Segments
	return result, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	chunk := s.cfg.ChunkSeconds
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", strconv.Itoa(chunk),
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken, "--diarize")
	}

	if lang := NormalizeLanguage(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CacheDir != "" {
		args = append(args, "--model_dir", s.cfg.CacheDir)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// NormalizeLanguage reduces a BCP 47 tag such as "en-US" to the two letter
// code WhisperX expects. Unparseable values return "".
func NormalizeLanguage(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	tag, err := language.Parse(value)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

type payload struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	p, err := loadPayload(jsonPath)
	if err != nil {
		return nil, err
	}
	return p.Segments, nil
}

func loadPayload(jsonPath string) (payload, error) {
	var p payload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse whisperx json: %w", err)
	}
	if p.Segments == nil {
		return p, errors.New("whisperx json has no segments field")
	}
	return p, nil
}
