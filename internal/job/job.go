// Package job holds the lifecycle of one download: its state machine,
// cancellation, pause gate and the partial progress kept for early saves.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/media"
	"github.com/tanq16/mediastitch/internal/utils"
)

type State int

const (
	Idle State = iota
	Running
	Succeeded
	Cleared
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Cleared:
		return "cleared"
	}
	return "idle"
}

var (
	ErrCleared = errors.New("job was cleared")
	ErrBusy    = errors.New("job is already running")
)

// Progress is what a running pipeline keeps so the contiguous prefix can be
// turned into a playable file before the job ends.
type Progress struct {
	Parts     *Parts
	Durations []float64
	Init      []byte
	FMP4      bool
}

type Job struct {
	ID      string
	Key     string
	URL     string
	Title   string
	Quality string
	Kind    media.Kind

	gate *Gate

	mu       sync.Mutex
	state    State
	ctx      context.Context
	cancel   context.CancelFunc
	progress *Progress
	result   *utils.Result
	err      error
	status   string
	fellBack bool
}

func New(key, url string) *Job {
	return &Job{
		ID:   uuid.New().String(),
		Key:  key,
		URL:  url,
		gate: &Gate{},
	}
}

func (j *Job) Gate() *Gate {
	return j.gate
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Start moves the job to Running and returns the context every stage of
// this run must use. Cleared and running jobs are refused.
func (j *Job) Start(parent context.Context) (context.Context, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case Cleared:
		return nil, fmt.Errorf("%w: %s", ErrCleared, j.Key)
	case Running:
		return nil, fmt.Errorf("%w: %s", ErrBusy, j.Key)
	}
	j.ctx, j.cancel = context.WithCancel(parent)
	j.state = Running
	j.result = nil
	j.err = nil
	j.progress = nil
	j.fellBack = false
	j.status = "starting"
	log.Debug().Str("op", "job/job").Msgf("job %s started", j.Key)
	return j.ctx, nil
}

// Stop cancels a running job, drops its partial progress and result and
// returns it to Idle.
func (j *Job) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == Cleared {
		return
	}
	j.cancelLocked()
	j.state = Idle
	j.progress = nil
	j.result = nil
	j.status = "stopped"
}

// Clear ends the job for good.
func (j *Job) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelLocked()
	j.state = Cleared
	j.progress = nil
	j.result = nil
	j.err = nil
	j.status = "cleared"
}

func (j *Job) cancelLocked() {
	if j.cancel != nil {
		j.cancel()
	}
	j.cancel = nil
	j.ctx = nil
}

// current reports whether ctx belongs to the run that is still active.
func (j *Job) current(ctx context.Context) bool {
	return j.state == Running && j.ctx != nil && j.ctx == ctx
}

// Finish records the result of the run that owns ctx. Results of a run
// that was stopped or cleared meanwhile are discarded.
func (j *Job) Finish(ctx context.Context, r *utils.Result) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.current(ctx) {
		return false
	}
	j.cancelLocked()
	j.state = Succeeded
	j.result = r
	j.progress = nil
	j.status = "done"
	return true
}

// Fail ends the run that owns ctx. Partial progress is kept so the
// contiguous prefix can still be saved. A cancellation is reported as
// stopped rather than as an error.
func (j *Job) Fail(ctx context.Context, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.current(ctx) {
		return
	}
	j.cancelLocked()
	j.state = Idle
	if utils.IsCancelled(err) {
		j.status = "stopped"
		return
	}
	j.err = err
	j.status = "failed"
}

func (j *Job) Result() *utils.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) SetStatus(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = msg
}

func (j *Job) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) SetProgress(p *Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == Running {
		j.progress = p
	}
}

func (j *Job) Progress() *Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// MarkFallback records a variant switch and reports whether this was the
// first one of the run.
func (j *Job) MarkFallback() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fellBack {
		return false
	}
	j.fellBack = true
	return true
}
