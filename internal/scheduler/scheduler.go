package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the periodic redrive of failed runs.
type Scheduler struct {
	cron     *cron.Cron
	redriver *Redriver
	logger   *zap.Logger
}

// NewScheduler registers the redrive job on spec (standard cron or "@every 5m" form).
// Overlapping ticks are skipped.
func NewScheduler(redriver *Redriver, spec string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLog := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		redriver: redriver,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid redrive schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start launches the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("redrive scheduler started")
}

// Stop halts scheduling and waits for a running tick, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) tick() {
	n, err := s.redriver.RedriveFailed(context.Background())
	if err != nil {
		s.logger.Error("redrive tick failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("redrive tick", zap.Int("redriven", n))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
