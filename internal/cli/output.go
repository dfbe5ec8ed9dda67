package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"restopay/internal/domain/attendance"
	"restopay/internal/domain/payroll"
	"restopay/internal/domain/reports"
)

const (
	formatTable     = "table"
	formatJSON      = "json"
	formatCSV       = "csv"
	formatTimelines = "timelines"
)

func checkFormat(format string, allowed ...string) error {
	if slices.Contains(allowed, format) {
		return nil
	}
	return fmt.Errorf("unknown format %q, want one of %v", format, allowed)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResult(w io.Writer, format string, res attendance.Result) error {
	switch format {
	case formatJSON:
		return writeJSON(w, res)
	case formatCSV:
		return reports.WriteIssuesCSV(w, res)
	case formatTimelines:
		return reports.WriteTimelinesCSV(w, res)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMPLOYEE\tWORK\tBREAK\tLEAVE\tSCHEDULED\tCONFLICTS")
	for _, tl := range res.Timelines {
		byType := tl.HoursByType()
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n", tl.EmployeeID,
			byType[attendance.TypeWork], byType[attendance.TypeBreak],
			byType[attendance.TypeLeave], byType[attendance.TypeScheduled], len(tl.Conflicts))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	status := "valid"
	if !res.Validation.IsValid {
		status = "INVALID"
	}
	fmt.Fprintf(w, "\n%s: %d errors, %d warnings\n", status, res.Validation.Summary.TotalErrors, res.Validation.Summary.TotalWarnings)
	for _, issue := range res.Validation.Issues() {
		who := issue.EmployeeID
		if who == "" {
			who = "-"
		}
		fmt.Fprintf(w, "  %-7s %-28s %-8s %s\n", issue.Severity, issue.Code, who, issue.Message)
	}
	return nil
}

func writeHours(w io.Writer, format string, hours []payroll.EmployeeHours) error {
	if format == formatJSON {
		return writeJSON(w, hours)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMPLOYEE\tREGULAR\tOVERTIME\tNIGHT")
	for _, h := range hours {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Totals.EmployeeID,
			h.Totals.Regular.Decimal.StringFixed(2),
			h.Totals.Overtime.Decimal.StringFixed(2),
			h.Totals.Night.Decimal.StringFixed(2))
	}
	return tw.Flush()
}
