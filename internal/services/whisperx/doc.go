// Package whisperx runs WhisperX speech-to-text through uvx and loads the
// segments it writes as JSON.
//
// Transcription settings (model, CUDA, VAD method, language, chunk size) come
// from Config. When a Hugging Face token is present the run also diarizes, so
// segments carry speaker labels.
package whisperx
