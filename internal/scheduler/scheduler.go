package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/output"
	"github.com/tanq16/mediastitch/internal/pipeline"
	"github.com/tanq16/mediastitch/internal/sink"
	"github.com/tanq16/mediastitch/internal/utils"
)

// Runner runs one request to a finished result.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*utils.Result, error)
}

// PartialSaver recovers the contiguous prefix of a playlist job that
// stopped before finishing.
type PartialSaver interface {
	SavePartial(ctx context.Context, key string) (*utils.Result, error)
}

// SaverFunc picks the sink for an entry; output is the entry's explicit
// path and may be empty.
type SaverFunc func(output string) sink.Saver

// Entry is one queued request with an optional explicit output path.
type Entry struct {
	Request pipeline.Request
	Output  string
}

// Outcome is what happened to an entry. Location is empty on failure;
// Partial is where the recovered prefix of a failed job went, if anywhere.
type Outcome struct {
	Entry    Entry
	Location string
	Partial  string
	Err      error
}

type Scheduler struct {
	runner   Runner
	saver    SaverFunc
	display  *output.Manager
	workers  int
	partials bool
}

func New(runner Runner, saver SaverFunc, display *output.Manager, workers int) *Scheduler {
	return &Scheduler{runner: runner, saver: saver, display: display, workers: max(1, workers)}
}

// KeepPartials makes failed playlist jobs save their downloaded prefix when
// the runner supports it.
func (s *Scheduler) KeepPartials(on bool) *Scheduler {
	s.partials = on
	return s
}

// EntriesFromCandidates turns scanner candidates into queued entries.
func EntriesFromCandidates(cands []utils.Candidate) []Entry {
	entries := make([]Entry, 0, len(cands))
	for _, c := range cands {
		req := pipeline.Request{
			URL:         c.URL,
			AudioURL:    c.AudioURL,
			Title:       c.Title,
			Quality:     c.Quality,
			ContentType: c.ContentType,
		}
		if c.AudioURL != "" {
			req.Kind = media.KindDASH
		}
		entries = append(entries, Entry{Request: req, Output: c.OutputPath})
	}
	return entries
}

// Run processes entries with a fixed worker pool and returns one outcome
// per entry in input order.
func (s *Scheduler) Run(ctx context.Context, entries []Entry) []Outcome {
	outcomes := make([]Outcome, len(entries))
	idx := make(chan int, len(entries))
	for i := range entries {
		idx <- i
	}
	close(idx)

	var wg sync.WaitGroup
	for range min(s.workers, len(entries)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				outcomes[i] = s.process(ctx, entries[i])
			}
		}()
	}
	wg.Wait()
	return outcomes
}

func (s *Scheduler) process(ctx context.Context, e Entry) Outcome {
	req := e.Request
	label := req.Title
	if label == "" {
		label = req.URL
	}
	id := s.display.Register(label)
	if ctx.Err() != nil {
		s.display.Warn(id, "Skipped "+label)
		return Outcome{Entry: e, Err: utils.ErrCancelled}
	}

	if req.Kind == "" {
		req.Kind = media.Classify(req.URL, req.ContentType)
	}
	unit := output.UnitBytes
	if req.Kind == media.KindM3U8 {
		unit = output.UnitSegments
	}
	req.Progress = func(done, total int64) {
		s.display.SetProgress(id, done, total, unit)
	}
	s.display.SetMessage(id, fmt.Sprintf("Stitching %s (%s)", label, req.Kind))
	log.Debug().Str("op", "scheduler/process").Msgf("starting %s as %s", req.URL, req.Kind)

	res, err := s.runner.Run(ctx, req)
	if err != nil {
		if utils.IsCancelled(err) {
			s.display.Warn(id, "Stopped "+label)
			return Outcome{Entry: e, Err: err}
		}
		out := Outcome{Entry: e, Err: err}
		if req.Kind == media.KindM3U8 {
			out.Partial = s.savePartial(ctx, req)
		}
		if out.Partial != "" {
			s.display.ReportError(id, fmt.Errorf("%w (partial saved to %s)", err, out.Partial))
		} else {
			s.display.ReportError(id, err)
		}
		return out
	}
	s.display.SetMessage(id, "Saving "+res.Filename)
	loc, err := s.saver(e.Output).Save(ctx, res)
	if err != nil {
		err = fmt.Errorf("save %s: %w", res.Filename, err)
		s.display.ReportError(id, err)
		return Outcome{Entry: e, Err: err}
	}
	s.display.Complete(id, "Saved "+loc)
	return Outcome{Entry: e, Location: loc}
}

// savePartial stores what a failed playlist job downloaded before the
// failure and returns where it went.
func (s *Scheduler) savePartial(ctx context.Context, req pipeline.Request) string {
	ps, ok := s.runner.(PartialSaver)
	if !s.partials || !ok {
		return ""
	}
	res, err := ps.SavePartial(ctx, req.JobKey())
	if err != nil {
		if !errors.Is(err, pipeline.ErrNoProgress) {
			log.Error().Str("op", "scheduler/partial").Msgf("partial save for %s failed: %v", req.URL, err)
		}
		return ""
	}
	loc, err := s.saver("").Save(ctx, res)
	if err != nil {
		log.Error().Str("op", "scheduler/partial").Msgf("partial save for %s failed: %v", req.URL, err)
		return ""
	}
	log.Info().Str("op", "scheduler/partial").Msgf("saved partial download to %s", loc)
	return loc
}

// Failed joins the errors of all failed outcomes.
func Failed(outcomes []Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Entry.Request.URL, o.Err))
		}
	}
	return errors.Join(errs...)
}
