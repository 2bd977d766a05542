package handler

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/noah-isme/school-attendance-api/internal/models"
	appErrors "github.com/noah-isme/school-attendance-api/pkg/errors"
	"github.com/noah-isme/school-attendance-api/pkg/export"
)

const (
	formatNDJSON = "ndjson"
	formatCSV    = "csv"
	formatXLSX   = "xlsx"
	formatPDF    = "pdf"

	ndjsonContentType = "application/x-ndjson"
	csvContentType    = "text/csv; charset=utf-8"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType    = "application/pdf"
)

var attendanceColumns = []string{
	"date", "student_id", "student_name", "enrollment_number", "group", "subject",
	"teacher", "start_time", "end_time", "status", "recorded_at", "notes",
}

// exportSink encodes ledger entries into one export format.
type exportSink struct {
	contentType string
	write       func(models.AttendanceEntry) error
	flush       func() error
	close       func() error
	abort       func() error
}

func newExportSink(format string, w io.Writer) (*exportSink, error) {
	switch format {
	case formatNDJSON:
		encoder := json.NewEncoder(w)
		noop := func() error { return nil }
		return &exportSink{
			contentType: ndjsonContentType,
			write:       func(entry models.AttendanceEntry) error { return encoder.Encode(entry) },
			flush:       noop,
			close:       noop,
			abort:       noop,
		}, nil
	case formatCSV:
		writer, err := export.NewCSVWriter(w, attendanceColumns)
		if err != nil {
			return nil, err
		}
		return &exportSink{
			contentType: csvContentType,
			write:       func(entry models.AttendanceEntry) error { return writer.WriteRow(attendanceRow(entry)) },
			flush:       writer.Flush,
			close: func() error {
				if err := writer.WriteHeader(); err != nil {
					return err
				}
				return writer.Flush()
			},
			abort: writer.Flush,
		}, nil
	case formatXLSX:
		writer, err := export.NewXLSXWriter(w, "attendance", attendanceColumns)
		if err != nil {
			return nil, err
		}
		noop := func() error { return nil }
		return &exportSink{
			contentType: xlsxContentType,
			write:       func(entry models.AttendanceEntry) error { return writer.WriteRow(attendanceRow(entry)) },
			flush:       noop,
			close:       writer.Close,
			abort:       writer.Discard,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "format must be ndjson, csv or xlsx")
	}
}

func attendanceRow(entry models.AttendanceEntry) []string {
	return []string{
		entry.Date.String(),
		entry.StudentID,
		entry.StudentName,
		stringOrEmpty(entry.EnrollmentNumber),
		entry.GroupName,
		entry.SubjectName,
		entry.TeacherName,
		entry.StartTime.String(),
		entry.EndTime.String(),
		string(entry.Status),
		entry.RecordedAt.String(),
		stringOrEmpty(entry.Notes),
	}
}

// missingClassesTable lays out a daily class report for PDF rendering.
func missingClassesTable(report *models.DailyClassReport) export.Table {
	table := export.Table{
		Title: "Classes without attendance",
		Subtitle: report.Date.String() + " at " + report.Now.String() +
			", compliance " + strconv.FormatFloat(report.Summary.Compliance, 'f', 1, 64) + "%",
		Headers: []string{"Start", "End", "Group", "Subject", "Teacher", "State"},
		Rows:    make([][]string, 0, len(report.Missing)),
	}
	for _, class := range report.Missing {
		table.Rows = append(table.Rows, []string{
			class.StartTime.String(),
			class.EndTime.String(),
			class.GroupName,
			class.SubjectName,
			class.TeacherName,
			string(class.State),
		})
	}
	return table
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
