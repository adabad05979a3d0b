package remux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

// ExecRunner runs the ffmpeg binary over temp files.
type ExecRunner struct {
	Path    string
	WorkDir string
}

func (r *ExecRunner) Run(ctx context.Context, input []byte, ext Input, args []string) ([]byte, error) {
	if r.WorkDir != "" {
		if err := os.MkdirAll(r.WorkDir, 0755); err != nil {
			return nil, fmt.Errorf("error creating work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(r.WorkDir, "remux_")
	if err != nil {
		return nil, fmt.Errorf("error creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input."+string(ext))
	outPath := filepath.Join(dir, "output.mp4")
	if err := os.WriteFile(inPath, input, 0644); err != nil {
		return nil, fmt.Errorf("error writing remux input: %w", err)
	}

	full := append([]string{"-hide_banner", "-loglevel", "error", "-y", "-i", inPath}, args...)
	full = append(full, outPath)
	cmd := exec.CommandContext(ctx, r.Path, full...)
	log.Debug().Str("op", "remux/exec").Msgf("Executing ffmpeg command: %s", cmd.String())
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w\nOutput: %s", err, string(output))
	}
	return os.ReadFile(outPath)
}

// FindFFmpeg looks in PATH, then next to the executable.
func FindFFmpeg() (string, error) {
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "ffmpeg")
		if runtime.GOOS == "windows" {
			candidate += ".exe"
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("ffmpeg not found in PATH, please install manually")
}
