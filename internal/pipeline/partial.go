package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/bmff"
	"github.com/tanq16/mediastitch/internal/remux"
	"github.com/tanq16/mediastitch/internal/utils"
)

// ErrNoProgress means a job has no contiguous segments to save yet.
var ErrNoProgress = errors.New("no contiguous segments downloaded yet")

// SavePartial turns the contiguous prefix of a running or failed playlist
// job into a playable file. Segments past the first gap are left out. ctx
// should not be the job's own context, which may already be cancelled.
func (m *Manager) SavePartial(ctx context.Context, key string) (*utils.Result, error) {
	j, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	prog := j.Progress()
	if prog == nil || prog.Parts == nil {
		return nil, fmt.Errorf("job %s: %w", key, ErrNoProgress)
	}
	prefix := prog.Parts.Prefix()
	if len(prefix) == 0 {
		return nil, fmt.Errorf("job %s: %w", key, ErrNoProgress)
	}

	seconds := 0.0
	for _, d := range prog.Durations[:min(len(prefix), len(prog.Durations))] {
		if d > 0 {
			seconds += d
		}
	}
	seconds = math.Round(seconds*1000) / 1000
	log.Debug().Str("op", "pipeline/partial").Msgf("saving %d of %d segments (%.3fs) for %s", len(prefix), prog.Parts.Len(), seconds, key)

	var data []byte
	if prog.FMP4 {
		out, err := bmff.ConcatFragments(prog.Init, prefix, seconds)
		if err != nil {
			return nil, fmt.Errorf("partial fmp4 concat: %w", err)
		}
		data = utils.Concat(out)
	} else {
		if data, err = m.deps.Transcoder.Remux(ctx, utils.Concat(prefix), remux.InputTS); err != nil {
			return nil, fmt.Errorf("partial remux: %w", err)
		}
	}
	return m.mp4Result(data, j.Title, j.Quality, true), nil
}
