package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic jobs: auto-save, live refresh and page audit.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cronLog := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		logger: logger,
		ctx:    context.Background(),
	}
}

func (s *Scheduler) Every(name string, interval time.Duration, job func(context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}
	_, err := s.cron.AddFunc("@every "+interval.String(), func() {
		start := time.Now()
		if err := job(s.context()); err != nil {
			s.logger.Warn("scheduled_job_failed", "job", name, "error", err)
			return
		}
		s.logger.Debug("scheduled_job_done", "job", name, "duration_ms", float64(time.Since(start).Microseconds())/1000.0)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Run starts the jobs and blocks until ctx is done and running jobs finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron_"+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron_"+msg, append(keysAndValues, "error", err)...)
}
