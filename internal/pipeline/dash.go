package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tanq16/mediastitch/internal/bmff"
	"github.com/tanq16/mediastitch/internal/fetch"
	"github.com/tanq16/mediastitch/internal/job"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/utils"
	"golang.org/x/sync/errgroup"
)

// runDASH downloads the video and audio fragment streams side by side and
// merges them into one timeline.
func (m *Manager) runDASH(ctx context.Context, j *job.Job, req Request) (*utils.Result, error) {
	if err := media.CheckDASH(req.URL, req.AudioURL); err != nil {
		return nil, err
	}
	f := m.fetcher(j)

	var video, audio fetch.File
	var vDone, aDone, vTotal, aTotal atomic.Int64
	report := func() {
		if req.Progress != nil {
			req.Progress(vDone.Load()+aDone.Load(), vTotal.Load()+aTotal.Load())
		}
	}
	j.SetStatus("downloading streams")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		video, err = f.FetchFile(gctx, req.URL, func(done, total int64) {
			vDone.Store(done)
			vTotal.Store(total)
			report()
		})
		if err != nil {
			return fmt.Errorf("video stream: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		audio, err = f.FetchFile(gctx, req.AudioURL, func(done, total int64) {
			aDone.Store(done)
			aTotal.Store(total)
			report()
		})
		if err != nil {
			return fmt.Errorf("audio stream: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dash download: %w", err)
	}

	seconds := max(bmff.SidxDurationSeconds(video.Data), bmff.SidxDurationSeconds(audio.Data))
	j.SetStatus("merging streams")
	out, err := bmff.MergeDASH(video.Data, audio.Data, seconds)
	if err != nil {
		return nil, fmt.Errorf("dash merge: %w", err)
	}
	quality := media.NormalizeQuality(req.Quality, req.URL)
	return m.mp4Result(utils.Concat(out), req.Title, quality, false), nil
}
