// Package pipeline runs downloads end to end: HLS playlists (fMP4 or TS),
// DASH fragment pairs and direct files. It owns the job registry and the
// operations that act on running jobs.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/fetch"
	"github.com/tanq16/mediastitch/internal/job"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/remux"
	"github.com/tanq16/mediastitch/internal/utils"
)

type Deps struct {
	Client     utils.HTTPDoer
	Transcoder *remux.Transcoder
	Fetch      fetch.Options
	// Now stamps output filenames; nil means time.Now.
	Now func() time.Time
}

// Request is one download. Key defaults to URL; Kind is classified from
// the URL when empty.
type Request struct {
	Key         string
	URL         string
	AudioURL    string
	Kind        media.Kind
	Title       string
	Quality     string
	ContentType string
	Progress    fetch.ProgressFunc
}

// JobKey is the registry key of the job that runs r.
func (r Request) JobKey() string {
	if r.Key != "" {
		return r.Key
	}
	return r.URL
}

type Manager struct {
	deps Deps
	jobs *job.Registry
}

func NewManager(deps Deps) *Manager {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{deps: deps, jobs: job.NewRegistry()}
}

func (m *Manager) Jobs() *job.Registry {
	return m.jobs
}

func (m *Manager) fetcher(j *job.Job) *fetch.Fetcher {
	return fetch.New(m.deps.Client, j.Gate(), m.deps.Fetch)
}

func (m *Manager) filename(title, quality, ext string) string {
	return media.BuildFilename(title, quality, ext, m.deps.Now())
}

// Run downloads req and blocks until the job ends. The job stays in the
// registry so it can be restarted after a stop or failure.
func (m *Manager) Run(parent context.Context, req Request) (*utils.Result, error) {
	if req.Kind == "" {
		req.Kind = media.Classify(req.URL, req.ContentType)
	}
	j := m.jobs.Ensure(req.JobKey(), req.URL)
	ctx, err := j.Start(parent)
	if err != nil {
		return nil, err
	}
	j.Title = req.Title
	j.Quality = media.NormalizeQuality(req.Quality, req.URL)
	j.Kind = req.Kind
	log.Debug().Str("op", "pipeline/manager").Msgf("job %s (%s) running as %s", j.ID, j.Key, req.Kind)

	var res *utils.Result
	switch req.Kind {
	case media.KindM3U8:
		res, err = m.runHLS(ctx, j, req, req.URL, req.Quality)
	case media.KindDASH:
		res, err = m.runDASH(ctx, j, req)
	default:
		res, err = m.runFile(ctx, j, req)
	}
	if err != nil {
		if ctx.Err() != nil && !utils.IsCancelled(err) {
			err = fmt.Errorf("%w: %w", utils.ErrCancelled, err)
		}
		j.Fail(ctx, err)
		return nil, err
	}
	if !j.Finish(ctx, res) {
		return nil, fmt.Errorf("job %s: %w", j.Key, utils.ErrCancelled)
	}
	return res, nil
}

func (m *Manager) lookup(key string) (*job.Job, error) {
	j, ok := m.jobs.Get(key)
	if !ok {
		return nil, fmt.Errorf("no job %q", key)
	}
	return j, nil
}

// Stop cancels a job and returns it to idle.
func (m *Manager) Stop(key string) error {
	j, err := m.lookup(key)
	if err != nil {
		return err
	}
	j.Stop()
	return nil
}

func (m *Manager) Pause(key string) error {
	j, err := m.lookup(key)
	if err != nil {
		return err
	}
	j.Gate().Pause()
	return nil
}

func (m *Manager) Resume(key string) error {
	j, err := m.lookup(key)
	if err != nil {
		return err
	}
	j.Gate().Resume()
	return nil
}

// TogglePause flips every job's gate and reports the new state of the
// last one.
func (m *Manager) TogglePause() bool {
	paused := false
	for _, j := range m.jobs.List() {
		paused = j.Gate().Toggle()
	}
	return paused
}

// Clear cancels and retires every job.
func (m *Manager) Clear() {
	m.jobs.Clear()
}
