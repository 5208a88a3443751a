package app

import (
	"context"

	"revenue-balance/internal/job"
)

// ApplicationService is the single interface all adapters (CLI, Web, scheduler) call.
// It decouples presentation from the balance job. Implementations must contain no
// display logic of any kind.
type ApplicationService interface {
	// RunNow executes a full balance run. Returns job.ErrRunInProgress if a run is
	// already going.
	RunNow(ctx context.Context, req RunRequest) (*RunResult, error)

	// StartRun claims the run slot and continues the run in the background. Returns
	// job.ErrRunInProgress, without starting anything, if a run is already going. The
	// finished run is available from LastRun.
	StartRun(ctx context.Context, req RunRequest) error

	// PreviewOrder classifies one order and resolves its completion code without
	// writing anything.
	PreviewOrder(ctx context.Context, orderID string) (*PreviewResult, error)

	// LatestSummary returns the most recent daily summary record, if any.
	LatestSummary(ctx context.Context) (*SummaryResult, error)

	// LastRun returns the most recent run finished by this process, or nil.
	LastRun() *RunResult

	// IsRunning reports whether a run is in progress.
	IsRunning() bool

	// RecordScheduledRun stores and exports the report of a scheduled run.
	RecordScheduledRun(ctx context.Context, report *job.RunReport)

	// PayloadSchema returns the JSON Schema of the map stage payload.
	PayloadSchema() ([]byte, error)
}
