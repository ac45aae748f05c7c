package sampler

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// audioArgs builds an ffmpeg invocation that writes the first audio stream
// as mono 16 kHz PCM, the format WhisperX expects.
func audioArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

// frameArgs builds an ffmpeg invocation that emits one scaled JPEG every
// interval seconds, stopping after maxFrames images.
func frameArgs(source, pattern string, interval, maxFrames, width int) []string {
	filter := fmt.Sprintf("fps=1/%d", interval)
	if width > 0 {
		filter += fmt.Sprintf(",scale=%d:-2", width)
	}
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:v:0",
		"-an",
		"-sn",
		"-vf", filter,
		"-frames:v", strconv.Itoa(maxFrames),
		"-q:v", "3",
		pattern,
	}
}
