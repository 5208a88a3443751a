// Package job runs the revenue balance batch: load the orders that need a balance,
// classify each order's lines (map), write the balance onto each order (reduce), then
// roll the run up into the daily summary record and escalate any stage failures.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"revenue-balance/internal/core"
	"revenue-balance/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrRunInProgress is returned by Run when another run of the same Runner has not finished.
var ErrRunInProgress = errors.New("job: a run is already in progress")

// Config controls a Runner.
type Config struct {
	JobName         string
	DeploymentID    string
	Workers         int
	OrdersPerSecond float64
	// StageDir, when set, spills map outputs to a bbolt file per run.
	StageDir       string
	KeepStageFiles bool
	Location       *time.Location
}

// OrderOutcome is the per-order result of a run or a preview.
type OrderOutcome struct {
	OrderID    string              `json:"order_id"`
	Result     *core.BalanceResult `json:"result"`
	Total      decimal.Decimal     `json:"order_total"`
	Completion core.CompletionCode `json:"completion"`
	Written    bool                `json:"written"`
}

// RunReport describes one run. Domain failures are recorded in Errors; they do not
// fail the run.
type RunReport struct {
	RunID            string             `json:"run_id"`
	JobName          string             `json:"job_name"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
	AsOfDate         time.Time          `json:"as_of_date"`
	OrdersSeen       int                `json:"orders_seen"`
	OrdersClassified int                `json:"orders_classified"`
	OrdersSkipped    int                `json:"orders_skipped"`
	OrdersWritten    int                `json:"orders_written"`
	Orders           []OrderOutcome     `json:"orders"`
	Totals           core.SummaryTotals `json:"totals"`
	SummaryID        int64              `json:"summary_id"`
	SummaryError     string             `json:"summary_error,omitempty"`
	Errors           []*StageError      `json:"-"`
}

// Failed reports whether any stage recorded an error.
func (r *RunReport) Failed() bool {
	return len(r.Errors) > 0 || r.SummaryError != ""
}

// ErrorsFor returns the errors recorded against stage.
func (r *RunReport) ErrorsFor(stage string) []*StageError {
	var out []*StageError
	for _, e := range r.Errors {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// Runner executes balance runs. It is safe to share between the scheduler and the
// HTTP trigger; overlapping runs are refused with ErrRunInProgress.
type Runner struct {
	cfg      Config
	source   LineSource
	store    RecordStore
	notifier notify.Notifier
	clock    core.Clock
	metrics  *Metrics
	log      *slog.Logger
	stages   func(runID string) (StageStore, error)
	running  atomic.Bool
}

// Option customises a Runner.
type Option func(*Runner)

func WithClock(c core.Clock) Option { return func(r *Runner) { r.clock = c } }
func WithMetrics(m *Metrics) Option { return func(r *Runner) { r.metrics = m } }
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

// WithStageStore overrides how the per-run stage store is opened.
func WithStageStore(open func(runID string) (StageStore, error)) Option {
	return func(r *Runner) { r.stages = open }
}

// NewRunner wires a Runner. notifier may be nil, in which case failures are only logged.
func NewRunner(cfg Config, source LineSource, store RecordStore, notifier notify.Notifier, opts ...Option) (*Runner, error) {
	if source == nil {
		return nil, errors.New("job: line source is required")
	}
	if store == nil {
		return nil, errors.New("job: record store is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobName == "" {
		cfg.JobName = "revenue_balance"
	}
	r := &Runner{
		cfg:    cfg,
		source: source,
		store:  store,
		clock:  core.SystemClock{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(r.log)
	}
	r.notifier = notifier
	return r, nil
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool { return r.running.Load() }

// Run executes one full run. It returns an error only when the run could not start.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)
	return r.run(ctx)
}

// Start claims the run slot and executes the run in the background. It returns
// ErrRunInProgress without starting anything when another run holds the slot. done,
// if non-nil, receives the outcome once the slot has been released.
func (r *Runner) Start(ctx context.Context, done func(*RunReport, error)) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	go func() {
		report, err := r.run(ctx)
		r.running.Store(false)
		if done != nil {
			done(report, err)
		}
	}()
	return nil
}

func (r *Runner) run(ctx context.Context) (*RunReport, error) {
	wallStart := time.Now()
	started := r.clock.Now()
	runID := uuid.NewString()
	st := &runState{
		report: &RunReport{
			RunID:     runID,
			JobName:   r.cfg.JobName,
			StartedAt: started,
			AsOfDate:  core.BusinessDate(started, r.cfg.Location),
		},
		outcomes: make(map[string]*OrderOutcome),
	}
	log := r.log.With("run_id", runID, "job", r.cfg.JobName)

	stages, err := r.openStageStore(runID)
	if err != nil {
		r.metrics.observeRun("error", time.Since(wallStart))
		return nil, err
	}
	defer func() {
		if err := stages.Close(); err != nil {
			log.Warn("failed to close stage store", "event", "stage_store_close_failed", "err", err)
		}
	}()

	log.Info("run started", "event", "run_started", "deployment_id", r.cfg.DeploymentID, "workers", r.cfg.Workers)

	ids := r.input(ctx, log, st)
	r.mapStage(ctx, log, st, ids, stages)
	r.reduceStage(ctx, log, st, stages)
	r.summarize(ctx, log, st, stages)

	report := st.finish(r.clock.Now())
	status := "success"
	switch {
	case ctx.Err() != nil:
		status = "cancelled"
	case report.Failed():
		status = "partial"
	}
	r.metrics.observeRun(status, time.Since(wallStart))
	log.Info("run finished",
		"event", "run_finished",
		"status", status,
		"orders_seen", report.OrdersSeen,
		"orders_classified", report.OrdersClassified,
		"orders_skipped", report.OrdersSkipped,
		"orders_written", report.OrdersWritten,
		"errors", len(report.Errors),
		"duration", time.Since(wallStart).String(),
	)
	return report, nil
}

// Preview classifies and resolves one order without writing anything.
func (r *Runner) Preview(ctx context.Context, orderID string) (*OrderOutcome, error) {
	lines, err := r.source.LoadLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lines for order %s: %w", orderID, err)
	}
	out := &OrderOutcome{OrderID: orderID, Result: core.Classify(lines)}
	if out.Result == nil {
		return out, nil
	}
	total, err := r.store.GetOrderTotal(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up total for order %s: %w", orderID, err)
	}
	out.Total = total
	out.Completion = core.ResolveCompletion(*out.Result, total)
	return out, nil
}

func (r *Runner) openStageStore(runID string) (StageStore, error) {
	if r.stages != nil {
		return r.stages(runID)
	}
	if r.cfg.StageDir == "" {
		return NewMemoryStageStore(), nil
	}
	return OpenBoltStageStore(r.cfg.StageDir, runID, r.cfg.KeepStageFiles)
}

// ── Input ────────────────────────────────────────────────────────────────────

func (r *Runner) input(ctx context.Context, log *slog.Logger, st *runState) []string {
	if r.cfg.DeploymentID != "" {
		if err := r.store.WriteLastRunTimestamp(ctx, r.cfg.DeploymentID, st.report.AsOfDate); err != nil {
			st.fail(log, &StageError{
				Kind:  KindPersistence,
				Stage: StageInput,
				Err:   fmt.Errorf("failed to write last run timestamp for deployment %s: %w", r.cfg.DeploymentID, err),
			})
		}
	}

	ids, err := r.source.LoadOrderIDs(ctx)
	if err != nil {
		st.fail(log, &StageError{
			Kind:  KindInput,
			Stage: StageInput,
			Err:   fmt.Errorf("failed to load orders needing a balance: %w", err),
		})
		return nil
	}

	seen := make(map[string]struct{}, len(ids))
	unique := ids[:0:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	st.report.OrdersSeen = len(unique)
	log.Info("orders loaded", "event", "input_loaded", "orders", len(unique))
	return unique
}

// ── Map ──────────────────────────────────────────────────────────────────────

func (r *Runner) mapStage(ctx context.Context, log *slog.Logger, st *runState, ids []string, stages StageStore) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.cfg.OrdersPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.OrdersPerSecond), 1)
	}

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for _, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		g.Go(func() error {
			r.mapOrder(ctx, log, st, id, stages)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) mapOrder(ctx context.Context, log *slog.Logger, st *runState, orderID string, stages StageStore) {
	fail := func(err error) {
		r.metrics.order(StageMap, "failed")
		st.fail(log, &StageError{Kind: KindCalculation, Stage: StageMap, OrderID: orderID, Err: err})
	}

	lines, err := r.source.LoadLines(ctx, orderID)
	if err != nil {
		fail(fmt.Errorf("failed to load lines: %w", err))
		return
	}
	result := core.Classify(lines)
	if result != nil {
		if err := result.Validate(); err != nil {
			fail(err)
			return
		}
	}
	payload, err := EncodePayload(OrderPayload{OrderID: orderID, Result: result})
	if err != nil {
		fail(err)
		return
	}
	if err := stages.Put(ctx, orderID, payload); err != nil {
		fail(fmt.Errorf("failed to stage payload: %w", err))
		return
	}

	if result == nil {
		r.metrics.order(StageMap, "no_activity")
		log.Debug("order has no invoice activity", "event", "order_no_activity", "order_id", orderID)
	} else {
		r.metrics.order(StageMap, "classified")
		log.Debug("order classified", "event", "order_classified", "order_id", orderID,
			"lines", result.LineCount, "balance", result.Balance.String())
	}
	st.classified(orderID, result)
}

// ── Reduce ───────────────────────────────────────────────────────────────────

func (r *Runner) reduceStage(ctx context.Context, log *slog.Logger, st *runState, stages StageStore) {
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	err := stages.Each(ctx, func(orderID string, payload []byte) error {
		g.Go(func() error {
			r.reduceOrder(ctx, log, st, orderID, payload)
			return nil
		})
		return nil
	})
	_ = g.Wait()
	if err != nil {
		st.fail(log, &StageError{Kind: KindPersistence, Stage: StageReduce, Err: fmt.Errorf("failed to read staged payloads: %w", err)})
	}
}

func (r *Runner) reduceOrder(ctx context.Context, log *slog.Logger, st *runState, orderID string, raw []byte) {
	fail := func(err error) {
		r.metrics.order(StageReduce, "failed")
		st.fail(log, &StageError{Kind: KindPersistence, Stage: StageReduce, OrderID: orderID, Err: err})
	}

	p, err := DecodePayload(raw)
	if err != nil {
		fail(err)
		return
	}
	if p.NoActivity() {
		r.metrics.order(StageReduce, "skipped")
		return
	}

	total, err := r.store.GetOrderTotal(ctx, orderID)
	if err != nil {
		fail(fmt.Errorf("failed to look up order total: %w", err))
		return
	}
	code := core.ResolveCompletion(*p.Result, total)
	fields := core.OrderFields(*p.Result, code, st.report.AsOfDate)
	if err := r.store.WriteOrderFields(ctx, orderID, fields); err != nil {
		fail(fmt.Errorf("failed to write balance fields: %w", err))
		return
	}

	r.metrics.order(StageReduce, "written")
	log.Debug("order balance written", "event", "order_written", "order_id", orderID, "revenue_status", code.String())
	st.written(orderID, total, code)
}

// ── Summarize ────────────────────────────────────────────────────────────────

func (r *Runner) summarize(ctx context.Context, log *slog.Logger, st *runState, stages StageStore) {
	totals := core.FoldSummary(nil, st.report.AsOfDate)
	err := stages.Each(ctx, func(_ string, raw []byte) error {
		p, err := DecodePayload(raw)
		if err != nil {
			// already recorded by reduce
			return nil
		}
		totals = core.AddToSummary(totals, p.Result)
		return nil
	})
	st.report.Totals = totals

	// A partial fold must never replace the day's record.
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		r.summaryFailed(log, st, fmt.Errorf("summary not saved, not every order result was read: %w", err))
		r.escalate(context.WithoutCancel(ctx), log, st.sortedErrors())
		return
	}

	agg, err := core.NewSummaryAggregator(r.store, r.clock, r.cfg.Location)
	if err == nil {
		var rec core.SummaryRecord
		rec, err = agg.Upsert(ctx, totals)
		st.report.SummaryID = rec.ID
	}
	if err != nil {
		r.summaryFailed(log, st, err)
	} else {
		r.metrics.summary(totals)
		log.Info("summary saved", "event", "summary_saved", "summary_id", st.report.SummaryID,
			"deferred", totals.Deferred.String(), "unearned", totals.Unearned.String(),
			"unbilled", totals.Unbilled.String(), "balance", totals.Balance.String())
	}

	r.escalate(context.WithoutCancel(ctx), log, st.sortedErrors())
}

func (r *Runner) summaryFailed(log *slog.Logger, st *runState, err error) {
	st.report.SummaryError = err.Error()
	st.fail(log, &StageError{Kind: KindPersistence, Stage: StageSummarize, Err: err})
}

// escalate sends one notification per failing stage.
func (r *Runner) escalate(ctx context.Context, log *slog.Logger, errs []*StageError) {
	stages, byStage := groupByStage(errs)
	for _, stage := range stages {
		group := byStage[stage]
		msg := notify.Message{
			JobName:      r.cfg.JobName,
			Stage:        stage,
			ErrorCode:    stageCode(stage, group),
			ErrorMessage: joinNotificationLines(group),
		}
		log.Error("stage failed", "event", "stage_failed", "stage", stage, "error_code", msg.ErrorCode, "errors", len(group))
		if err := r.notifier.Notify(ctx, msg); err != nil {
			r.metrics.notification("failed")
			log.Error("failed to send stage failure notification", "event", "notification_failed", "stage", stage, "err", err)
			continue
		}
		r.metrics.notification("sent")
	}
}

// stageCode picks the error code reported for a stage: the stage's own failure kind
// when present, otherwise the first error's kind.
func stageCode(stage string, group []*StageError) string {
	primary := map[string]Kind{
		StageInput:     KindInput,
		StageMap:       KindCalculation,
		StageReduce:    KindPersistence,
		StageSummarize: KindPersistence,
	}[stage]
	for _, e := range group {
		if e.Kind == primary {
			return e.Code()
		}
	}
	return group[0].Code()
}

// ── Run state ────────────────────────────────────────────────────────────────

type runState struct {
	mu       sync.Mutex
	report   *RunReport
	outcomes map[string]*OrderOutcome
}

func (s *runState) fail(log *slog.Logger, e *StageError) {
	log.Warn("stage error", "event", "stage_error", "stage", e.Stage, "order_id", e.OrderID, "error_code", e.Code(), "err", e.Err)
	s.mu.Lock()
	s.report.Errors = append(s.report.Errors, e)
	s.mu.Unlock()
}

func (s *runState) classified(orderID string, result *core.BalanceResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[orderID] = &OrderOutcome{OrderID: orderID, Result: result}
	if result == nil {
		s.report.OrdersSkipped++
	} else {
		s.report.OrdersClassified++
	}
}

func (s *runState) written(orderID string, total decimal.Decimal, code core.CompletionCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[orderID]
	if !ok {
		o = &OrderOutcome{OrderID: orderID}
		s.outcomes[orderID] = o
	}
	o.Total = total
	o.Completion = code
	o.Written = true
	s.report.OrdersWritten++
}

var stageRank = map[string]int{StageInput: 0, StageMap: 1, StageReduce: 2, StageSummarize: 3}

func (s *runState) sortedErrors() []*StageError {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.report.Errors, func(i, j int) bool {
		a, b := s.report.Errors[i], s.report.Errors[j]
		if stageRank[a.Stage] != stageRank[b.Stage] {
			return stageRank[a.Stage] < stageRank[b.Stage]
		}
		return a.OrderID < b.OrderID
	})
	out := make([]*StageError, len(s.report.Errors))
	copy(out, s.report.Errors)
	return out
}

func (s *runState) finish(at time.Time) *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.FinishedAt = at
	s.report.Orders = make([]OrderOutcome, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		s.report.Orders = append(s.report.Orders, *o)
	}
	sort.Slice(s.report.Orders, func(i, j int) bool {
		return s.report.Orders[i].OrderID < s.report.Orders[j].OrderID
	})
	return s.report
}
