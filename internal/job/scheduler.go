package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the job daily at 02:00 in the reporting location.
const DefaultSchedule = "0 2 * * *"

// ReportFunc receives the report of every scheduled run.
type ReportFunc func(ctx context.Context, report *RunReport)

// Scheduler triggers runs on a cron schedule. A tick that arrives while the previous
// run is still going is skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	loc      *time.Location
	runner   *Runner
	log      *slog.Logger
	onReport ReportFunc
}

// NewScheduler validates spec (standard five-field cron syntax) and returns a Scheduler.
func NewScheduler(spec string, loc *time.Location, runner *Runner, log *slog.Logger, onReport ReportFunc) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is required")
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{spec: spec, schedule: schedule, loc: loc, runner: runner, log: log, onReport: onReport}, nil
}

// Next returns the next activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Run blocks until ctx is cancelled, triggering a run at every activation. It waits
// for an in-flight run to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	c.Start()
	s.log.Info("scheduler started", "event", "scheduler_started", "schedule", s.spec,
		"location", s.loc.String(), "next_run", s.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped", "event", "scheduler_stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.Run(ctx)
	if err != nil {
		s.log.Error("scheduled run failed to start", "event", "scheduled_run_failed", "err", err)
		return
	}
	if s.onReport != nil {
		s.onReport(ctx, report)
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
