package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/voicehire-team/voicehire/pkg/config"
)

// ErrEncodeFailed marks media pipeline failures so callers can distinguish
// them from storage or metadata errors.
var ErrEncodeFailed = errors.New("media encode failed")

// Encoder runs ffmpeg to mix per-role audio tracks into one opus/ogg output
type Encoder struct {
	ffmpegPath string
	bitrate    string
}

// NewEncoder creates an ffmpeg-backed encoder
func NewEncoder(cfg *config.MediaConfig) *Encoder {
	return &Encoder{
		ffmpegPath: cfg.FFmpegPath,
		bitrate:    cfg.AudioBitrate,
	}
}

// CheckBinary verifies the ffmpeg binary is reachable
func (e *Encoder) CheckBinary() error {
	if _, err := exec.LookPath(e.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", e.ffmpegPath, err)
	}
	return nil
}

// MixTracks mixes the input tracks into a single output file. With one input
// the mix degrades to a plain transcode. With several, amix pads the shorter
// tracks with silence so the output duration equals the longest input and no
// participant's trailing speech is truncated.
func (e *Encoder) MixTracks(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no input tracks", ErrEncodeFailed)
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, mixArgs(inputs, output, e.bitrate)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %v: %s", ErrEncodeFailed, err, string(out))
	}
	return nil
}

// mixArgs builds the ffmpeg argument list for MixTracks
func mixArgs(inputs []string, output, bitrate string) []string {
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	if len(inputs) > 1 {
		filter := fmt.Sprintf("amix=inputs=%d:duration=longest", len(inputs))
		args = append(args, "-filter_complex", filter)
	}

	args = append(args, "-c:a", "libopus", "-b:a", bitrate, output)
	return args
}
