package app

import (
	"revenue-balance/internal/core"
	"revenue-balance/internal/job"
)

// RunResult is returned by RunNow.
type RunResult struct {
	Report      *job.RunReport
	Trigger     string
	ReportFiles []string
}

// PreviewResult is returned by PreviewOrder.
type PreviewResult struct {
	Outcome *job.OrderOutcome
}

// SummaryResult is returned by LatestSummary. Record is nil when no summary exists yet.
type SummaryResult struct {
	Record *core.SummaryRecord
}
