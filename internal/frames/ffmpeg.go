package frames

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FFmpegDecoder reads durations with ffprobe and grabs frames with ffmpeg.
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
}

func NewFFmpegDecoder() (*FFmpegDecoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	log.Debug().Str("path", ffmpegPath).Msg("Found ffmpeg")

	// ffprobe is optional; duration falls back to parsing ffmpeg output.
	ffprobePath, _ := exec.LookPath("ffprobe")

	return newFFmpegDecoder(ffmpegPath, ffprobePath)
}

// newFFmpegDecoder gives every decoder its own frame directory so Cleanup
// never touches frames another process is still writing.
func newFFmpegDecoder(ffmpegPath, ffprobePath string) (*FFmpegDecoder, error) {
	tempDir, err := os.MkdirTemp(os.TempDir(), "brokeshot-frames-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &FFmpegDecoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
	}, nil
}

func (d *FFmpegDecoder) Duration(ctx context.Context, videoPath string) (time.Duration, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return 0, fmt.Errorf("video file not accessible: %w", err)
	}

	if d.ffprobePath != "" {
		cmd := exec.CommandContext(ctx, d.ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			videoPath)

		var stdout bytes.Buffer
		cmd.Stdout = &stdout

		if err := cmd.Run(); err == nil {
			if seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64); err == nil && seconds > 0 {
				return secondsToDuration(seconds), nil
			}
		}
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, "-i", videoPath, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	seconds, err := parseFFmpegDuration(stderr.String())
	if err != nil {
		return 0, err
	}
	return secondsToDuration(seconds), nil
}

func (d *FFmpegDecoder) FrameAt(ctx context.Context, videoPath string, at time.Duration) (image.Image, error) {
	tempFile := filepath.Join(d.tempDir, fmt.Sprintf("frame_%s.jpg", uuid.New().String()))
	defer os.Remove(tempFile)

	args := []string{
		"-ss", fmt.Sprintf("%.3f", at.Seconds()),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-f", "mjpeg",
		"-y", tempFile,
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Debug().Str("stderr", stderr.String()).Msg("ffmpeg failed")
		return nil, fmt.Errorf("failed to extract frame at %s: %w", at, err)
	}

	file, err := os.Open(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open extracted frame: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// Cleanup removes the frame directory of this decoder only.
func (d *FFmpegDecoder) Cleanup() error {
	return os.RemoveAll(d.tempDir)
}

// parseFFmpegDuration reads the "Duration: HH:MM:SS.ss," banner ffmpeg prints.
func parseFFmpegDuration(output string) (float64, error) {
	const durationPrefix = "Duration: "
	startIndex := strings.Index(output, durationPrefix)
	if startIndex == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}

	startIndex += len(durationPrefix)
	endIndex := strings.Index(output[startIndex:], ",")
	if endIndex == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	durationStr := output[startIndex : startIndex+endIndex]
	parts := strings.Split(durationStr, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", durationStr)
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return hours*3600 + minutes*60 + seconds, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

type unavailableDecoder struct {
	err error
}

// Unavailable is a Decoder for hosts without ffmpeg. Every call fails with
// err, so extraction degrades to no preview.
func Unavailable(err error) Decoder {
	return unavailableDecoder{err: err}
}

func (d unavailableDecoder) Duration(ctx context.Context, videoPath string) (time.Duration, error) {
	return 0, d.err
}

func (d unavailableDecoder) FrameAt(ctx context.Context, videoPath string, at time.Duration) (image.Image, error) {
	return nil, d.err
}
