package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"revenue-balance/internal/core"
	"revenue-balance/internal/export"
	"revenue-balance/internal/job"
)

// SummaryReader reads persisted summary records.
type SummaryReader interface {
	LatestSummary(ctx context.Context) (*core.SummaryRecord, error)
}

type appService struct {
	runner    *job.Runner
	summaries SummaryReader
	reportDir string
	log       *slog.Logger

	mu   sync.Mutex
	last *RunResult
}

// NewAppService constructs an appService that satisfies ApplicationService. reportDir
// may be empty, in which case scheduled runs are not exported.
func NewAppService(runner *job.Runner, summaries SummaryReader, reportDir string, log *slog.Logger) ApplicationService {
	if log == nil {
		log = slog.Default()
	}
	return &appService{
		runner:    runner,
		summaries: summaries,
		reportDir: reportDir,
		log:       log,
	}
}

// RunNow executes a full balance run and optionally writes its report.
func (s *appService) RunNow(ctx context.Context, req RunRequest) (*RunResult, error) {
	s.log.Info("manual run requested", "event", "run_requested", "trigger", req.Trigger)
	report, err := s.runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	return s.complete(req, report)
}

// StartRun starts a full balance run in the background.
func (s *appService) StartRun(ctx context.Context, req RunRequest) error {
	s.log.Info("background run requested", "event", "run_requested", "trigger", req.Trigger)
	return s.runner.Start(ctx, func(report *job.RunReport, err error) {
		if err != nil {
			s.log.Error("background run failed", "event", "run_failed", "trigger", req.Trigger, "err", err)
			return
		}
		if _, err := s.complete(req, report); err != nil {
			s.log.Error("failed to write run report", "event", "report_export_failed", "run_id", report.RunID, "err", err)
		}
	})
}

// complete writes the optional report file and remembers the run.
func (s *appService) complete(req RunRequest, report *job.RunReport) (*RunResult, error) {
	result := &RunResult{Report: report, Trigger: req.Trigger}
	defer s.remember(result)
	if req.ReportPath == "" {
		return result, nil
	}
	data, err := export.Build(req.ReportPath, report)
	if err != nil {
		return result, err
	}
	if err := os.WriteFile(req.ReportPath, data, 0o644); err != nil {
		return result, fmt.Errorf("failed to write report %s: %w", req.ReportPath, err)
	}
	result.ReportFiles = append(result.ReportFiles, req.ReportPath)
	return result, nil
}

// PreviewOrder classifies one order without writing anything.
func (s *appService) PreviewOrder(ctx context.Context, orderID string) (*PreviewResult, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	outcome, err := s.runner.Preview(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Outcome: outcome}, nil
}

// LatestSummary returns the most recent daily summary record.
func (s *appService) LatestSummary(ctx context.Context) (*SummaryResult, error) {
	rec, err := s.summaries.LatestSummary(ctx)
	if err != nil {
		return nil, err
	}
	return &SummaryResult{Record: rec}, nil
}

func (s *appService) LastRun() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *appService) IsRunning() bool {
	return s.runner.Running()
}

// RecordScheduledRun keeps the report for the ops surface and exports it to reportDir.
func (s *appService) RecordScheduledRun(ctx context.Context, report *job.RunReport) {
	result := &RunResult{Report: report, Trigger: "schedule"}
	if s.reportDir != "" {
		paths, err := export.WriteRunReport(s.reportDir, report)
		if err != nil {
			s.log.Error("failed to export run report", "event", "report_export_failed", "run_id", report.RunID, "err", err)
		}
		result.ReportFiles = paths
	}
	s.remember(result)
}

// PayloadSchema returns the indented JSON Schema of the stage payload.
func (s *appService) PayloadSchema() ([]byte, error) {
	return json.MarshalIndent(job.PayloadSchema(), "", "  ")
}

func (s *appService) remember(r *RunResult) {
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
}
