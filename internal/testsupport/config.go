package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sentinel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithLLMKey sets the LLM API key on the test config.
func WithLLMKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithLLMEndpoint points the LLM client at a test server.
func WithLLMEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the external tools sentinel
// shells out to are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "uvx", "yt-dlp"}
		}
		for _, name := range names {
			b.writeStub(name, "exit 0\n")
		}
	}
}

// WithStubScript installs a stub executable whose body is the given POSIX
// shell script (without the shebang line) and prepends it to PATH.
func WithStubScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		b.writeStub(name, body)
	}
}

func (b *configBuilder) writeStub(name, body string) {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}
	path := os.Getenv("PATH")
	if !strings.HasPrefix(path, binDir+string(os.PathListSeparator)) && path != binDir {
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+path)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
