// Package ffmpeg wraps the external transcoding binary behind the
// Transcoder port. All invocations carry a hard wall-clock timeout, and
// every failure degrades instead of aborting the job.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/framehook/captiond/internal/core/domain"
)

type Transcoder struct {
	logger  *slog.Logger
	binary  string
	timeout time.Duration
	format  string // audio extraction container, e.g. "mp3"
	bitrate string // audio extraction bitrate, e.g. "128k"
}

func NewTranscoder(logger *slog.Logger, timeout time.Duration, format, bitrate string) *Transcoder {
	return &Transcoder{
		logger:  logger,
		binary:  "ffmpeg",
		timeout: timeout,
		format:  format,
		bitrate: bitrate,
	}
}

// Normalize re-encodes into constant 30fps H.264 with even dimensions
// and yuv420p pixel format. On any failure the input path comes back
// unchanged with Degraded set; caption generation proceeds on the
// un-normalized file.
func (t *Transcoder) Normalize(ctx context.Context, inputPath string) domain.NormalizeResult {
	outputPath := domain.PreprocessedPath(inputPath)

	args := []string{
		"-i", inputPath,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-r", "30", "-pix_fmt", "yuv420p",
		"-movflags", "+faststart", "-y", outputPath,
	}

	if err := t.run(ctx, args, outputPath); err != nil {
		t.logger.Warn("normalize degraded, using original video", "input", inputPath, "error", err)
		return domain.NormalizeResult{Path: inputPath, Degraded: true, Warning: err}
	}
	return domain.NormalizeResult{Path: outputPath}
}

// ExtractAudio pulls the audio track into the configured format. An
// error means "no audio available" to the caller.
func (t *Transcoder) ExtractAudio(ctx context.Context, inputPath string) (string, error) {
	outputPath := domain.StripExt(inputPath) + "_extracted." + t.format

	codec := "copy"
	if t.format == "mp3" {
		codec = "libmp3lame"
	}
	args := []string{
		"-i", inputPath, "-vn",
		"-acodec", codec, "-ab", t.bitrate,
		"-ar", "44100", "-y", outputPath,
	}

	if err := t.run(ctx, args, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// run executes the binary and applies the shared success definition:
// exit zero AND the output file exists AND is non-empty.
func (t *Transcoder) run(ctx context.Context, args []string, outputPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, t.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s", t.binary, t.timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return fmt.Errorf("%s error: %w: %s", t.binary, err, detail)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output is empty: %s", outputPath)
	}
	return nil
}
