// Package export renders run reports as XLSX and PDF files.
package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"revenue-balance/internal/job"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "summary"
	ordersSheet  = "orders"
	errorsSheet  = "errors"
)

// BuildRunXLSX renders a workbook with the run summary, one row per order and the
// recorded stage errors.
func BuildRunXLSX(report *job.RunReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ordersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(errorsSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Revenue Balance Run", report.RunID},
		{"Job", report.JobName},
		{"As of", report.AsOfDate.Format("2006-01-02")},
		{"Started", report.StartedAt.Format(time.RFC3339)},
		{"Finished", report.FinishedAt.Format(time.RFC3339)},
		{"Orders seen", report.OrdersSeen},
		{"Orders classified", report.OrdersClassified},
		{"Orders without activity", report.OrdersSkipped},
		{"Orders written", report.OrdersWritten},
		{"Deferred total", amount(report.Totals.Deferred)},
		{"Unearned total", amount(report.Totals.Unearned)},
		{"Unbilled total", amount(report.Totals.Unbilled)},
		{"Balance total", amount(report.Totals.Balance)},
		{"Summary record", report.SummaryID},
	}
	for i, kv := range summary {
		row := i + 1
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), kv[1])
	}

	headers := []string{"Order", "Order Status", "Revenue Status", "Order Total", "Deferred", "Unearned", "Unbilled", "Balance", "Invoice Statuses", "Commitment Statuses", "Written"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ordersSheet, cell, h)
	}
	for i, o := range report.Orders {
		row := i + 2
		values := orderRow(o)
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(ordersSheet, cell, v)
		}
	}

	_ = f.SetCellValue(errorsSheet, "A1", "Stage")
	_ = f.SetCellValue(errorsSheet, "B1", "Error Code")
	_ = f.SetCellValue(errorsSheet, "C1", "Order")
	_ = f.SetCellValue(errorsSheet, "D1", "Detail")
	for i, e := range report.Errors {
		row := i + 2
		_ = f.SetCellValue(errorsSheet, fmt.Sprintf("A%d", row), e.Stage)
		_ = f.SetCellValue(errorsSheet, fmt.Sprintf("B%d", row), e.Code())
		_ = f.SetCellValue(errorsSheet, fmt.Sprintf("C%d", row), e.OrderID)
		_ = f.SetCellValue(errorsSheet, fmt.Sprintf("D%d", row), e.Err.Error())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orderRow(o job.OrderOutcome) []any {
	if o.Result == nil {
		return []any{o.OrderID, "", "NO ACTIVITY", amount(o.Total), 0, 0, 0, 0, "", "", o.Written}
	}
	r := o.Result
	return []any{
		o.OrderID,
		string(r.OrderStatus),
		completionLabel(o),
		amount(o.Total),
		amount(r.Deferred),
		amount(r.Unearned),
		amount(r.Unbilled),
		amount(r.Balance),
		joinLabels(r.InvoiceStatuses),
		joinLabels(r.RevenueCommitmentStatuses),
		o.Written,
	}
}

// BuildRunPDF renders a one-page run summary followed by the order table.
func BuildRunPDF(report *job.RunReport) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Revenue Balance Run")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	lines := []string{
		fmt.Sprintf("Run: %s", report.RunID),
		fmt.Sprintf("As of: %s", report.AsOfDate.Format("2006-01-02")),
		fmt.Sprintf("Finished: %s", report.FinishedAt.Format(time.RFC3339)),
		fmt.Sprintf("Orders: %d seen, %d classified, %d without activity, %d written",
			report.OrdersSeen, report.OrdersClassified, report.OrdersSkipped, report.OrdersWritten),
		fmt.Sprintf("Deferred: %s   Unearned: %s   Unbilled: %s   Balance: %s",
			report.Totals.Deferred.StringFixed(2), report.Totals.Unearned.StringFixed(2),
			report.Totals.Unbilled.StringFixed(2), report.Totals.Balance.StringFixed(2)),
	}
	if len(report.Errors) > 0 {
		lines = append(lines, fmt.Sprintf("Stage errors: %d", len(report.Errors)))
	}
	for _, l := range lines {
		pdf.Cell(0, 6, l)
		pdf.Ln(5)
	}
	pdf.Ln(4)

	cols := []struct {
		title string
		width float64
		align string
	}{
		{"Order", 30, "L"},
		{"Order Status", 55, "L"},
		{"Revenue Status", 35, "C"},
		{"Deferred", 35, "R"},
		{"Unearned", 35, "R"},
		{"Unbilled", 35, "R"},
		{"Balance", 35, "R"},
	}
	pdf.SetFont("Arial", "B", 9)
	for _, c := range cols {
		pdf.CellFormat(c.width, 6, c.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, o := range report.Orders {
		if o.Result == nil {
			continue
		}
		values := []string{
			o.OrderID,
			string(o.Result.OrderStatus),
			completionLabel(o),
			o.Result.Deferred.StringFixed(2),
			o.Result.Unearned.StringFixed(2),
			o.Result.Unbilled.StringFixed(2),
			o.Result.Balance.StringFixed(2),
		}
		for i, c := range cols {
			pdf.CellFormat(c.width, 6, values[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRunReport writes both renderings into dir and returns the file paths.
func WriteRunReport(dir string, report *job.RunReport) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	base := filepath.Join(dir, fmt.Sprintf("revenue-balance-%s-%s", report.AsOfDate.Format("20060102"), shortID(report.RunID)))

	var paths []string
	for _, r := range []struct {
		ext   string
		build func(*job.RunReport) ([]byte, error)
	}{
		{".xlsx", BuildRunXLSX},
		{".pdf", BuildRunPDF},
	} {
		data, err := r.build(report)
		if err != nil {
			return paths, fmt.Errorf("failed to render %s report: %w", r.ext, err)
		}
		path := base + r.ext
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Build renders report in the format implied by path's extension.
func Build(path string, report *job.RunReport) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return BuildRunXLSX(report)
	case ".pdf":
		return BuildRunPDF(report)
	}
	return nil, fmt.Errorf("unsupported report format %q (want .xlsx or .pdf)", filepath.Ext(path))
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func completionLabel(o job.OrderOutcome) string {
	if !o.Written {
		return "NOT WRITTEN"
	}
	return o.Completion.String()
}

func joinLabels[T ~string](labels []T) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
