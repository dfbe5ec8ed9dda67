package reports

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"restopay/internal/domain/attendance"
)

// maxPDFIssues caps the issue listing; the CSV export carries all of them.
const maxPDFIssues = 200

type Service struct {
	Dir string
}

func NewService(dir string) *Service {
	return &Service{Dir: dir}
}

// RunPDF returns the path of the stored report for res, rendering it on first
// use.
func (s *Service) RunPDF(res attendance.Result, generatedAt time.Time) (string, error) {
	if res.RunID == "" {
		return "", fmt.Errorf("report needs a run id")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	filePath := filepath.Join(s.Dir, "reconciliation-"+res.RunID+".pdf")
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil
	}
	pdf := buildPDF(res, generatedAt)
	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", err
	}
	return filePath, nil
}

// WritePDF renders the validation report of res to w.
func WritePDF(w io.Writer, res attendance.Result, generatedAt time.Time) error {
	return buildPDF(res, generatedAt).Output(w)
}

func buildPDF(res attendance.Result, generatedAt time.Time) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Attendance reconciliation", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Attendance reconciliation")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	if res.RunID != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Run: %s", res.RunID))
		pdf.Ln(6)
	}
	if res.Period != nil {
		pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", res.Period.From.Format("2006-01-02"), res.Period.To.Format("2006-01-02")))
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(6)
	status := "valid"
	if !res.Validation.IsValid {
		status = "INVALID"
	}
	pdf.Cell(0, 7, fmt.Sprintf("Result: %s, %d errors, %d warnings",
		status, res.Validation.Summary.TotalErrors, res.Validation.Summary.TotalWarnings))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Hours per employee")
	pdf.Ln(8)
	widths := []float64{50, 30, 30, 30, 30}
	header := []string{"Employee", "Work", "Break", "Leave", "Scheduled"}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, tl := range res.Timelines {
		byType := tl.HoursByType()
		cells := []string{
			tl.EmployeeID,
			fmt.Sprintf("%.2f", byType[attendance.TypeWork]),
			fmt.Sprintf("%.2f", byType[attendance.TypeBreak]),
			fmt.Sprintf("%.2f", byType[attendance.TypeLeave]),
			fmt.Sprintf("%.2f", byType[attendance.TypeScheduled]),
		}
		for i, c := range cells {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	issues := res.Validation.Issues()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Issues")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
	if len(issues) == 0 {
		pdf.Cell(0, 6, "No issues found.")
		pdf.Ln(6)
	}
	for i, issue := range issues {
		if i == maxPDFIssues {
			pdf.MultiCell(0, 5, fmt.Sprintf("... %d more, see the CSV export", len(issues)-maxPDFIssues), "", "L", false)
			break
		}
		line := fmt.Sprintf("[%s] %s", issue.Severity, issue.Code)
		if issue.EmployeeID != "" {
			line += " " + issue.EmployeeID
		}
		pdf.MultiCell(0, 5, line+": "+issue.Message, "", "L", false)
	}
	return pdf
}
