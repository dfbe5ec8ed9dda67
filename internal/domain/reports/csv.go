package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"restopay/internal/domain/attendance"
)

var issueHeader = []string{"severity", "code", "employee_id", "message", "first_start", "first_end", "details"}

// WriteIssuesCSV writes one row per issue, errors first.
func WriteIssuesCSV(w io.Writer, res attendance.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(issueHeader); err != nil {
		return err
	}
	for _, issue := range res.Validation.Issues() {
		var start, end string
		if len(issue.Related) > 0 {
			start = issue.Related[0].Start.Format(time.RFC3339)
			end = issue.Related[0].End.Format(time.RFC3339)
		}
		row := []string{string(issue.Severity), issue.Code, issue.EmployeeID, issue.Message, start, end, formatMeta(issue.Meta)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var timelineHeader = []string{"employee_id", "day", "type", "source", "start", "end", "hours", "validated"}

// WriteTimelinesCSV writes every canonical interval of every employee.
func WriteTimelinesCSV(w io.Writer, res attendance.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(timelineHeader); err != nil {
		return err
	}
	for _, tl := range res.Timelines {
		for _, iv := range tl.Intervals {
			row := []string{
				tl.EmployeeID,
				attendance.DayKey(iv.Start),
				string(iv.Type),
				string(iv.Source),
				iv.Start.Format(time.RFC3339),
				iv.End.Format(time.RFC3339),
				fmt.Sprintf("%.2f", iv.Duration),
				fmt.Sprintf("%t", iv.Validated),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}
