// Package transcode converts video containers into mp3 files with ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

const (
	// DefaultTimeout bounds a single conversion.
	DefaultTimeout = 300 * time.Second

	// DefaultBitrate and DefaultSampleRate match the encoder settings of the converted library.
	DefaultBitrate    = "192k"
	DefaultSampleRate = 44100

	// outputTail is how much of the tool output is kept for error reports.
	outputTail = 512
)

// Options configures the ffmpeg transcoder.
type Options struct {
	Binary     string        // ffmpeg executable, looked up in PATH when not absolute
	OutputDir  string        // converted files land here
	Timeout    time.Duration // per-file deadline
	Bitrate    string        // e.g. "192k"
	SampleRate int           // Hz
}

// FFmpeg implements ports.Transcoder by running ffmpeg as a child process.
type FFmpeg struct {
	logger *slog.Logger
	opts   Options
}

// New creates a transcoder. Zero options fall back to the defaults.
func New(logger *slog.Logger, opts Options) *FFmpeg {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Bitrate == "" {
		opts.Bitrate = DefaultBitrate
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	return &FFmpeg{
		logger: logger.With(slog.String("adapter", "ffmpeg")),
		opts:   opts,
	}
}

// Transcode extracts the audio of inputPath into a new mp3 under the output
// directory and returns its path. The call blocks until ffmpeg exits, the
// timeout expires or ctx ends; an expired timeout is ErrTranscodeTimeout.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", domain.NewToolError("ffmpeg", "transcode", inputPath, "", domain.ErrFileNotFound)
	}
	if err := os.MkdirAll(f.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	out := UniqueOutputPath(f.opts.OutputDir, inputPath)

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.opts.Binary,
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", f.opts.Bitrate,
		"-ar", strconv.Itoa(f.opts.SampleRate),
		"-y",
		out,
	)
	cmd.WaitDelay = time.Second
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	f.logger.Info("transcoding", slog.String("input", inputPath), slog.String("output", out))

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		_ = os.Remove(out)
		f.logger.Warn("transcode timed out", slog.String("input", inputPath), slog.Duration("timeout", f.opts.Timeout))
		return "", domain.NewToolError("ffmpeg", "transcode", inputPath, tail(output.Bytes()), domain.ErrTranscodeTimeout)
	}
	if err != nil {
		_ = os.Remove(out)
		f.logger.Warn("transcode failed", slog.String("input", inputPath), slog.Any("error", err))
		return "", domain.NewToolError("ffmpeg", "transcode", inputPath, tail(output.Bytes()), err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", domain.NewToolError("ffmpeg", "transcode", inputPath, tail(output.Bytes()), errors.New("no output written"))
	}

	f.logger.Info("transcoded", slog.String("output", out), slog.Duration("took", time.Since(start)))
	return out, nil
}

// UniqueOutputPath returns <dir>/<base>.mp3, or <dir>/<base>_N.mp3 with the
// smallest N that does not collide with an existing file.
func UniqueOutputPath(dir, inputPath string) string {
	base := domain.BaseName(inputPath)
	candidate := filepath.Join(dir, base+".mp3")
	for n := 1; exists(candidate); n++ {
		candidate = filepath.Join(dir, base+"_"+strconv.Itoa(n)+".mp3")
	}
	return candidate
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > outputTail {
		b = b[len(b)-outputTail:]
	}
	return string(b)
}

var _ ports.Transcoder = (*FFmpeg)(nil)
