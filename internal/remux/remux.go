// Package remux turns downloaded streams into a playable MP4 through an
// external ffmpeg. A Transcoder runs one ffmpeg at a time; stream copy is
// tried first and a re-encode only when the copy output is unusable.
package remux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/utils"
)

// Input names the container handed to ffmpeg; it doubles as the input
// file extension.
type Input string

const InputTS Input = "ts"

const minOutputSize = 1024

type Config struct {
	Path         string
	CRF          int
	AudioBitrate string
	Preset       string
	// WorkDir holds the temp files of one run; empty means os.TempDir.
	WorkDir string
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "ffmpeg"
	}
	if c.CRF <= 0 {
		c.CRF = 23
	}
	if c.AudioBitrate == "" {
		c.AudioBitrate = "128k"
	}
	if c.Preset == "" {
		c.Preset = "veryfast"
	}
	return c
}

// Runner executes one ffmpeg invocation. args never include the input or
// output paths; the runner supplies them.
type Runner interface {
	Run(ctx context.Context, input []byte, ext Input, args []string) ([]byte, error)
}

type Transcoder struct {
	mu     sync.Mutex
	cfg    Config
	runner Runner
}

func New(cfg Config, runner Runner) *Transcoder {
	cfg = cfg.withDefaults()
	if runner == nil {
		runner = &ExecRunner{Path: cfg.Path, WorkDir: cfg.WorkDir}
	}
	return &Transcoder{cfg: cfg, runner: runner}
}

// CopyArgs is the stream copy tier. The ADTS bitstream filter only applies
// to transport streams.
func CopyArgs(in Input) []string {
	args := []string{"-fflags", "+genpts+igndts", "-map", "0:v:0", "-map", "0:a:0?", "-c", "copy"}
	if in == InputTS {
		args = append(args, "-bsf:a", "aac_adtstoasc")
	}
	return append(args, "-movflags", "+faststart")
}

func (t *Transcoder) encodeArgs() []string {
	return []string{
		"-fflags", "+genpts+igndts",
		"-map", "0:v:0", "-map", "0:a:0?",
		"-c:v", "libx264", "-preset", t.cfg.Preset, "-crf", strconv.Itoa(t.cfg.CRF), "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", t.cfg.AudioBitrate,
		"-movflags", "+faststart",
	}
}

// Valid reports whether out looks like an MP4 worth keeping.
func Valid(out []byte) bool {
	if len(out) < minOutputSize {
		return false
	}
	tag := out[4:8]
	return bytes.Equal(tag, []byte("ftyp")) || bytes.Equal(tag, []byte("moov"))
}

// Remux converts input to MP4. Calls are serialized per Transcoder.
func (t *Transcoder) Remux(ctx context.Context, input []byte, in Input) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(input) == 0 {
		return nil, fmt.Errorf("%w: empty input", utils.ErrRemux)
	}

	tiers := []struct {
		name string
		args []string
	}{
		{"copy", CopyArgs(in)},
		{"encode", t.encodeArgs()},
	}
	var errs []error
	for _, tier := range tiers {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("remux: %w", utils.ErrCancelled)
		}
		out, err := t.runner.Run(ctx, input, in, tier.args)
		if err == nil && Valid(out) {
			log.Debug().Str("op", "remux/remux").Msgf("%s tier produced %s", tier.name, utils.FormatBytes(uint64(len(out))))
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("remux: %w", utils.ErrCancelled)
		}
		if err == nil {
			err = fmt.Errorf("output of %d bytes is not an mp4", len(out))
		}
		log.Debug().Str("op", "remux/remux").Msgf("%s tier failed: %v", tier.name, err)
		errs = append(errs, fmt.Errorf("%s: %w", tier.name, err))
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRemux, errors.Join(errs...))
}
