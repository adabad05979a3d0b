package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediastitch/internal/fetch"
	"github.com/tanq16/mediastitch/internal/job"
	"github.com/tanq16/mediastitch/internal/output"
	"github.com/tanq16/mediastitch/internal/pipeline"
	"github.com/tanq16/mediastitch/internal/remux"
	"github.com/tanq16/mediastitch/internal/scheduler"
	"github.com/tanq16/mediastitch/internal/sink"
	"github.com/tanq16/mediastitch/internal/utils"
)

// app wires the engine from the loaded config for one command invocation.
type app struct {
	manager *pipeline.Manager
	saverFn scheduler.SaverFunc
	display *output.Manager
}

func newApp(ctx context.Context) (*app, error) {
	client := utils.NewHTTPClient(cfg.HTTPClientConfig(utils.ParseHeaderArgs(headers)))

	rc := cfg.RemuxConfig(filepath.Join(cfg.OutputDir, utils.TempDirName))
	if rc.Path == "" {
		path, err := remux.FindFFmpeg()
		if err != nil {
			log.Debug().Str("op", "cmd/app").Msgf("ffmpeg lookup: %v", err)
		} else {
			rc.Path = path
		}
	}

	saverFn, err := newSaverFunc(ctx)
	if err != nil {
		return nil, err
	}
	mgr := pipeline.NewManager(pipeline.Deps{
		Client:     client,
		Transcoder: remux.New(rc, nil),
		Fetch: fetch.Options{
			Concurrency:  cfg.Connections,
			ChunkSize:    cfg.ChunkSize,
			ProbeTimeout: cfg.RangeProbeTimeout,
		},
		Now: time.Now,
	})
	return &app{manager: mgr, saverFn: saverFn, display: output.NewManager()}, nil
}

func newSaverFunc(ctx context.Context) (scheduler.SaverFunc, error) {
	if cfg.Sink.Kind == "s3" {
		s3Saver, err := sink.NewS3Saver(ctx, cfg.Sink.Bucket, cfg.Sink.Prefix, cfg.Sink.Profile)
		if err != nil {
			return nil, err
		}
		return func(string) sink.Saver { return s3Saver }, nil
	}
	return func(out string) sink.Saver {
		return &sink.LocalSaver{Dir: cfg.OutputDir, Output: out}
	}, nil
}

// run executes entries with the configured worker count and handles
// interrupts and pause toggles for the duration.
func (a *app) run(entries []scheduler.Entry) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, append([]os.Signal{os.Interrupt, syscall.SIGTERM}, pauseSignals()...)...)
	defer signal.Stop(sigCh)
	stopWatch := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		a.watchSignals(sigCh, stopWatch, cancel)
	}()

	a.display.StartDisplay()
	outcomes := scheduler.New(a.manager, a.saverFn, a.display, cfg.Workers).KeepPartials(cfg.PartialOnInterrupt).Run(ctx, entries)
	close(stopWatch)
	<-watchDone
	a.display.StopDisplay()

	if err := scheduler.Failed(outcomes); err != nil {
		return fmt.Errorf("encountered failed operation(s): %w", err)
	}
	return nil
}

func (a *app) watchSignals(sigCh <-chan os.Signal, stop <-chan struct{}, cancel context.CancelFunc) {
	interrupted := false
	for {
		select {
		case <-stop:
			return
		case sig := <-sigCh:
			if isPauseSignal(sig) {
				a.display.SetPaused(a.manager.TogglePause())
				continue
			}
			if interrupted {
				output.PrintError("Forced exit")
				os.Exit(130)
			}
			interrupted = true
			if cfg.PartialOnInterrupt {
				a.savePartials()
			}
			cancel()
		}
	}
}

// savePartials writes the contiguous prefix of every running job before
// the jobs are cancelled.
func (a *app) savePartials() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	for _, j := range a.manager.Jobs().List() {
		if j.State() != job.Running {
			continue
		}
		res, err := a.manager.SavePartial(ctx, j.Key)
		if err != nil {
			if !errors.Is(err, pipeline.ErrNoProgress) {
				log.Error().Str("op", "cmd/app").Msgf("partial save for %s failed: %v", j.URL, err)
			}
			continue
		}
		loc, err := a.saverFn("").Save(ctx, res)
		if err != nil {
			log.Error().Str("op", "cmd/app").Msgf("partial save for %s failed: %v", j.URL, err)
			continue
		}
		log.Info().Str("op", "cmd/app").Msgf("saved partial download to %s", loc)
	}
}
