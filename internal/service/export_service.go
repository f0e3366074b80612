package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/classwatch/classwatch-api/internal/models"
	appErrors "github.com/classwatch/classwatch-api/pkg/errors"
	"github.com/classwatch/classwatch-api/pkg/export"
)

// ExportFormat enumerates report output formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult is a rendered report ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders class attendance reports for download.
type ExportService struct {
	attendance *AttendanceService
	logger     *zap.Logger
}

// NewExportService constructs the report renderer.
func NewExportService(attendance *AttendanceService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{attendance: attendance, logger: logger}
}

// ClassAttendanceReport renders the class's attendance records in the
// requested format, one row per record plus the status breakdown.
func (s *ExportService) ClassAttendanceReport(ctx context.Context, classID string, filter models.AttendanceFilter, format ExportFormat) (*ExportResult, error) {
	records, summary, err := s.attendance.ClassAttendance(ctx, classID, filter)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Attendance Report %s", classID),
		Columns: []string{"Student", "Check-In", "Check-Out", "Status", "Location"},
		Rows:    make([][]string, 0, len(records)+1),
	}
	for _, record := range records {
		checkOut := ""
		if record.CheckOutTime != nil {
			checkOut = record.CheckOutTime.UTC().Format(time.RFC3339)
		}
		location := ""
		if record.Location != nil {
			location = *record.Location
		}
		table.Rows = append(table.Rows, []string{
			record.StudentID,
			record.CheckInTime.UTC().Format(time.RFC3339),
			checkOut,
			string(record.Status),
			location,
		})
	}
	table.Rows = append(table.Rows, []string{
		"TOTALS",
		fmt.Sprintf("present=%d late=%d", summary.Present, summary.Late),
		fmt.Sprintf("absent=%d excused=%d", summary.Absent, summary.Excused),
		fmt.Sprintf("total=%d", summary.Total),
		"",
	})

	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case ExportFormatCSV:
		payload, err := export.RenderCSV(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv report")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("attendance_%s_%s.csv", classID, stamp),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case ExportFormatPDF:
		payload, err := export.RenderPDF(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf report")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("attendance_%s_%s.pdf", classID, stamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
