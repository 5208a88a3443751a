package web

import (
	"revenue-balance/internal/app"
	"revenue-balance/internal/core"
	"revenue-balance/internal/job"
)

// Amounts are rendered with two decimal places as strings.

type summaryView struct {
	ID       int64  `json:"id"`
	AsOf     string `json:"as_of"`
	Deferred string `json:"deferred_total"`
	Unearned string `json:"unearned_total"`
	Unbilled string `json:"unbilled_total"`
	Balance  string `json:"balance_total"`
}

func newSummaryView(rec *core.SummaryRecord) summaryView {
	return summaryView{
		ID:       rec.ID,
		AsOf:     formatTime(rec.AsOf),
		Deferred: rec.Deferred.StringFixed(2),
		Unearned: rec.Unearned.StringFixed(2),
		Unbilled: rec.Unbilled.StringFixed(2),
		Balance:  rec.Balance.StringFixed(2),
	}
}

type orderView struct {
	OrderID                   string   `json:"order_id"`
	HasActivity               bool     `json:"has_activity"`
	Completion                string   `json:"completion,omitempty"`
	OrderTotal                string   `json:"order_total,omitempty"`
	OrderStatus               string   `json:"order_status,omitempty"`
	Deferred                  string   `json:"deferred,omitempty"`
	Unearned                  string   `json:"unearned,omitempty"`
	Unbilled                  string   `json:"unbilled,omitempty"`
	Balance                   string   `json:"balance,omitempty"`
	InvoiceStatuses           []string `json:"invoice_statuses,omitempty"`
	RevenueCommitmentStatuses []string `json:"revenue_commitment_statuses,omitempty"`
	LineCount                 int      `json:"line_count"`
}

func newOrderView(o *job.OrderOutcome) orderView {
	v := orderView{OrderID: o.OrderID}
	if o.Result == nil {
		return v
	}
	r := o.Result
	v.HasActivity = true
	v.Completion = o.Completion.String()
	v.OrderTotal = o.Total.StringFixed(2)
	v.OrderStatus = string(r.OrderStatus)
	v.Deferred = r.Deferred.StringFixed(2)
	v.Unearned = r.Unearned.StringFixed(2)
	v.Unbilled = r.Unbilled.StringFixed(2)
	v.Balance = r.Balance.StringFixed(2)
	v.LineCount = r.LineCount
	for _, s := range r.InvoiceStatuses {
		v.InvoiceStatuses = append(v.InvoiceStatuses, string(s))
	}
	for _, s := range r.RevenueCommitmentStatuses {
		v.RevenueCommitmentStatuses = append(v.RevenueCommitmentStatuses, string(s))
	}
	return v
}

type stageErrorView struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message"`
}

type runView struct {
	RunID            string           `json:"run_id"`
	Trigger          string           `json:"trigger"`
	StartedAt        string           `json:"started_at"`
	FinishedAt       string           `json:"finished_at"`
	OrdersSeen       int              `json:"orders_seen"`
	OrdersClassified int              `json:"orders_classified"`
	OrdersSkipped    int              `json:"orders_skipped"`
	OrdersWritten    int              `json:"orders_written"`
	Deferred         string           `json:"deferred_total"`
	Unearned         string           `json:"unearned_total"`
	Unbilled         string           `json:"unbilled_total"`
	Balance          string           `json:"balance_total"`
	SummaryID        int64            `json:"summary_id"`
	SummaryError     string           `json:"summary_error,omitempty"`
	Failed           bool             `json:"failed"`
	Errors           []stageErrorView `json:"errors"`
	ReportFiles      []string         `json:"report_files,omitempty"`
}

func newRunView(res *app.RunResult) runView {
	rep := res.Report
	v := runView{
		RunID:            rep.RunID,
		Trigger:          res.Trigger,
		StartedAt:        formatTime(rep.StartedAt),
		FinishedAt:       formatTime(rep.FinishedAt),
		OrdersSeen:       rep.OrdersSeen,
		OrdersClassified: rep.OrdersClassified,
		OrdersSkipped:    rep.OrdersSkipped,
		OrdersWritten:    rep.OrdersWritten,
		Deferred:         rep.Totals.Deferred.StringFixed(2),
		Unearned:         rep.Totals.Unearned.StringFixed(2),
		Unbilled:         rep.Totals.Unbilled.StringFixed(2),
		Balance:          rep.Totals.Balance.StringFixed(2),
		SummaryID:        rep.SummaryID,
		SummaryError:     rep.SummaryError,
		Failed:           rep.Failed(),
		Errors:           make([]stageErrorView, 0, len(rep.Errors)),
		ReportFiles:      res.ReportFiles,
	}
	for _, e := range rep.Errors {
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		v.Errors = append(v.Errors, stageErrorView{
			Stage:   e.Stage,
			Code:    e.Code(),
			OrderID: e.OrderID,
			Message: msg,
		})
	}
	return v
}
