// Package schedule triggers sync runs on a cron expression and keeps the
// outcome of the latest run for the status endpoints.
package schedule

import (
	"context"
	stdsync "sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	syncrun "github.com/clinicsync/clinicsync/internal/domain/sync"
)

// RunFunc performs one full sync run.
type RunFunc func(ctx context.Context) (*syncrun.Stats, error)

// Scheduler runs RunFunc on a cron spec. Runs never overlap: a tick that
// fires while a run is still in progress is skipped.
type Scheduler struct {
	cron    *cron.Cron
	run     RunFunc
	logger  zerolog.Logger
	baseCtx context.Context

	mu      stdsync.Mutex
	running bool
	last    *syncrun.Stats
}

// New builds a scheduler for the given five-field cron spec.
func New(baseCtx context.Context, spec string, run RunFunc, logger zerolog.Logger) (*Scheduler, error) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	s := &Scheduler{
		cron:    cron.New(),
		run:     run,
		logger:  logger.With().Str("component", "schedule").Logger(),
		baseCtx: baseCtx,
	}
	if _, err := s.cron.AddFunc(spec, s.Trigger); err != nil {
		return nil, err
	}
	return s, nil
}

// Trigger starts a run immediately unless one is already in progress.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("previous run still in progress, tick skipped")
		return
	}
	s.running = true
	s.mu.Unlock()

	stats, err := s.run(s.baseCtx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sync run failed")
	}

	s.mu.Lock()
	s.running = false
	if stats != nil {
		s.last = stats
	}
	s.mu.Unlock()
}

// Start begins firing cron ticks.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("scheduler started")
	s.cron.Start()
}

// Stop halts ticking and waits for an in-flight run's cron goroutine.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastRun returns the stats of the most recent completed run, or nil.
func (s *Scheduler) LastRun() *syncrun.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
