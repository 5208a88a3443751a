package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"revenue-balance/internal/app"
	"revenue-balance/internal/job"
)

// ErrUsage is returned for unknown commands or missing arguments.
var ErrUsage = errors.New("usage error")

// Commands lists the one-shot commands handled by Run.
var Commands = []string{"run", "preview", "summary", "schema"}

// Handles reports whether Run understands the subcommand.
func Handles(cmd string) bool {
	for _, c := range Commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// Run executes a one-shot CLI command and writes its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command (available: %s)", ErrUsage, strings.Join(Commands, ", "))
	}

	switch args[0] {
	case "run":
		fs := flag.NewFlagSet("run", flag.ContinueOnError)
		fs.SetOutput(out)
		reportPath := fs.String("report", "", "write the run report to this .xlsx or .pdf file")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		res, err := svc.RunNow(ctx, app.RunRequest{Trigger: "cli", ReportPath: *reportPath})
		if res != nil {
			printRunReport(out, res)
		}
		if err != nil {
			return err
		}
		if res.Report.Failed() {
			return errors.New("run finished with errors")
		}

	case "preview":
		if len(args) < 2 {
			return fmt.Errorf("%w: balancer preview <sales-order-id>", ErrUsage)
		}
		res, err := svc.PreviewOrder(ctx, args[1])
		if err != nil {
			return err
		}
		printOutcome(out, res.Outcome)

	case "summary":
		res, err := svc.LatestSummary(ctx)
		if err != nil {
			return err
		}
		if res.Record == nil {
			fmt.Fprintln(out, "No summary record yet.")
			return nil
		}
		rec := res.Record
		printHeader(out, "LATEST REVENUE CLASSIFICATION SUMMARY")
		fmt.Fprintf(out, "  Record   : %d\n", rec.ID)
		fmt.Fprintf(out, "  As of    : %s\n", rec.AsOf.Format("2006-01-02 15:04:05 MST"))
		printRule(out, "-")
		printAmount(out, "Deferred", rec.Deferred.StringFixed(2))
		printAmount(out, "Unearned", rec.Unearned.StringFixed(2))
		printAmount(out, "Unbilled", rec.Unbilled.StringFixed(2))
		printAmount(out, "Balance", rec.Balance.StringFixed(2))
		printRule(out, "=")

	case "schema":
		data, err := svc.PayloadSchema()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	default:
		return fmt.Errorf("%w: unknown command %s (available: %s)", ErrUsage, args[0], strings.Join(Commands, ", "))
	}
	return nil
}

func printRunReport(out io.Writer, res *app.RunResult) {
	r := res.Report
	printHeader(out, "REVENUE BALANCE RUN")
	fmt.Fprintf(out, "  Run      : %s (%s)\n", r.RunID, res.Trigger)
	fmt.Fprintf(out, "  As of    : %s\n", r.AsOfDate.Format("2006-01-02"))
	fmt.Fprintf(out, "  Orders   : %d seen, %d classified, %d without activity, %d written\n",
		r.OrdersSeen, r.OrdersClassified, r.OrdersSkipped, r.OrdersWritten)
	printRule(out, "-")
	printAmount(out, "Deferred", r.Totals.Deferred.StringFixed(2))
	printAmount(out, "Unearned", r.Totals.Unearned.StringFixed(2))
	printAmount(out, "Unbilled", r.Totals.Unbilled.StringFixed(2))
	printAmount(out, "Balance", r.Totals.Balance.StringFixed(2))
	if r.SummaryError != "" {
		fmt.Fprintf(out, "  Summary not saved: %s\n", r.SummaryError)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  ! %s\n", e.Error())
	}
	for _, p := range res.ReportFiles {
		fmt.Fprintf(out, "  Report   : %s\n", p)
	}
	printRule(out, "=")
}

func printOutcome(out io.Writer, o *job.OrderOutcome) {
	printHeader(out, "SALES ORDER "+o.OrderID)
	if o.Result == nil {
		fmt.Fprintln(out, "  No invoice activity; the order would be skipped.")
		printRule(out, "=")
		return
	}
	r := o.Result
	fmt.Fprintf(out, "  Status     : %s\n", r.OrderStatus)
	fmt.Fprintf(out, "  Lines      : %d\n", r.LineCount)
	fmt.Fprintf(out, "  Invoices   : %s\n", joinLabels(r.InvoiceStatuses))
	fmt.Fprintf(out, "  Rev. comm. : %s\n", joinLabels(r.RevenueCommitmentStatuses))
	printRule(out, "-")
	printAmount(out, "Order total", o.Total.StringFixed(2))
	printAmount(out, "Deferred", r.Deferred.StringFixed(2))
	printAmount(out, "Unearned", r.Unearned.StringFixed(2))
	printAmount(out, "Unbilled", r.Unbilled.StringFixed(2))
	printAmount(out, "Balance", r.Balance.StringFixed(2))
	fmt.Fprintf(out, "  %-20s %39s\n", "Revenue status", o.Completion)
	printRule(out, "=")
}

func joinLabels[S ~string](labels []S) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%q", string(l))
	}
	return strings.Join(parts, ", ")
}

func printHeader(out io.Writer, title string) {
	fmt.Fprintln(out)
	printRule(out, "=")
	fmt.Fprintf(out, "  %-58s\n", title)
	printRule(out, "=")
}

func printRule(out io.Writer, ch string) {
	fmt.Fprintln(out, strings.Repeat(ch, 62))
}

func printAmount(out io.Writer, label, amount string) {
	fmt.Fprintf(out, "  %-20s %39s\n", label, amount)
}
