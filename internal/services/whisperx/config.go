package whisperx

// Config captures runtime settings for WhisperX transcription.
type Config struct {
	// Model is the WhisperX model to use (e.g., "large-v3-turbo").
	Model string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	// VADMethod selects the voice activity detection method ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for pyannote VAD and diarization.
	HFToken string
	// Language forces the spoken language; empty lets WhisperX detect it.
	Language string
	// ChunkSeconds bounds the length of merged VAD chunks.
	ChunkSeconds int
	// CacheDir overrides where model weights are downloaded.
	CacheDir string
}

// WhisperX configuration constants.
const (
	DefaultModel      = "large-v3"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	DefaultChunkSize  = 15
	VADOnset          = "0.08"
	VADOffset         = "0.07"
	BeamSize          = "5"
	Temperature       = "0.0"
	SegmentResolution = "sentence"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// UVXCommand runs WhisperX in an ephemeral Python environment.
const UVXCommand = "uvx"
