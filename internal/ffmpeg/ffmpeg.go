package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/Jeffail/gabs/v2"
)

// DefaultThumbnailTimeout bounds single-frame extraction. Thumbnailing must
// never stall an ingest task; conversion, by contrast, is expected to be
// slow and runs unbounded.
const DefaultThumbnailTimeout = time.Second * 3

const DefaultThumbnailTime = "00:00:01"

// Tool invokes ffmpeg/ffprobe binaries. The zero value is not usable; call
// New.
type Tool struct {
	ffmpegBinary  string
	ffprobeBinary string
}

func New() *Tool {
	return &Tool{ffmpegBinary: "ffmpeg", ffprobeBinary: "ffprobe"}
}

func run(cmd *exec.Cmd) (string, error) {
	var buf bytes.Buffer

	cmd.Stdin = nil
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()

	return buf.String(), err
}

// HasAudioStream reports whether the file carries at least one audio stream.
func (t *Tool) HasAudioStream(ctx context.Context, videoFile string) (bool, error) {
	cmd := exec.CommandContext(
		ctx, t.ffprobeBinary,
		"-v", "quiet",
		"-select_streams", "a",
		"-show_streams",
		"-print_format", "json",
		videoFile,
	)

	stdout, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("ffmpeg.Tool.HasAudioStream: %w", err)
	}

	return ParseAudioProbe(stdout)
}

// ParseAudioProbe inspects ffprobe -show_streams JSON output.
func ParseAudioProbe(d []byte) (bool, error) {
	parsed, err := gabs.ParseJSON(d)
	if err != nil {
		return false, fmt.Errorf("ffmpeg.ParseAudioProbe: %w", err)
	}

	return len(parsed.Path("streams").Children()) > 0, nil
}

// MakeThumbnail extracts a single frame at the given timestamp. If the
// context carries no deadline, DefaultThumbnailTimeout applies.
func (t *Tool) MakeThumbnail(ctx context.Context, videoFile, imageFile, at string) (string, error) {
	if at == "" {
		at = DefaultThumbnailTime
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultThumbnailTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx, t.ffmpegBinary,
		"-y",
		"-loglevel", "error",
		"-ss", at,
		"-i", videoFile,
		"-vf", "scale='min(320,iw)':-2",
		"-frames:v", "1",
		"-qscale:v", "4",
		imageFile,
	)

	output, err := run(cmd)
	if err != nil {
		return output, fmt.Errorf("ffmpeg.Tool.MakeThumbnail: %w", err)
	}

	return output, nil
}

// ConvertToMP4 remuxes/transcodes into the primary serving format
// (h264/aac in an mp4 container).
func (t *Tool) ConvertToMP4(ctx context.Context, inputFile, outputFile string) (string, error) {
	cmd := exec.CommandContext(
		ctx, t.ffmpegBinary,
		"-y",
		"-loglevel", "warning",
		"-i", inputFile,
		"-c:v", "libx264",
		"-c:a", "aac",
		outputFile,
	)

	output, err := run(cmd)
	if err != nil {
		return output, fmt.Errorf("ffmpeg.Tool.ConvertToMP4: %w", err)
	}

	return output, nil
}
