package report

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"
)

// Filename is the download name of an XLSX report.
func Filename(p Period) string {
	return fmt.Sprintf("bookings_%s_%s.xlsx", p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly))
}

// StaffNamer resolves a staff id to a display name.
type StaffNamer func(staffID int64) string

// sheetWriter appends rows to sheets of an excelize workbook.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns ...string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.writeRow(row...); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		first, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		last, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.currentSheet, first, last, style)
	}
	return nil
}

func (w *sheetWriter) writeRow(values ...any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", w.currentRow, err)
	}
	w.currentRow++
	return nil
}

// WriteXLSX renders r as a workbook with a summary, a per-day and a booking
// sheet. names may be nil.
func WriteXLSX(out io.Writer, r Report, names StaffNamer) error {
	w := newSheetWriter()
	defer w.file.Close()

	if err := w.addSheet("Summary"); err != nil {
		return err
	}
	summary := [][]any{
		{"Period start", r.Period.Start.Format(time.DateOnly)},
		{"Period end", r.Period.End.Format(time.DateOnly)},
		{"Total bookings", r.TotalBookings},
		{"Confirmed", r.ConfirmedBookings},
		{"Cancelled", r.CancelledBookings},
		{"Total hours", r.TotalHours},
		{"Average duration (min)", r.AverageDuration},
	}
	for _, row := range summary {
		if err := w.writeRow(row...); err != nil {
			return err
		}
	}

	if err := w.addSheet("By day"); err != nil {
		return err
	}
	if err := w.writeHeader("Date", "Bookings"); err != nil {
		return err
	}
	days := make([]string, 0, len(r.BookingsByDay))
	for d := range r.BookingsByDay {
		days = append(days, d)
	}
	slices.Sort(days)
	for _, d := range days {
		if err := w.writeRow(d, r.BookingsByDay[d]); err != nil {
			return err
		}
	}

	if err := w.addSheet("Bookings"); err != nil {
		return err
	}
	if err := w.writeHeader("ID", "Date", "Time", "Duration (min)", "Staff", "Title", "Customer", "Service", "Status"); err != nil {
		return err
	}
	for _, b := range r.Bookings {
		staff := fmt.Sprint(b.StaffID)
		if names != nil {
			if n := names(b.StaffID); n != "" {
				staff = n
			}
		}
		if err := w.writeRow(b.ID, b.Date, b.Time, b.Duration, staff, b.Title, b.Customer, b.Service, b.Status); err != nil {
			return err
		}
	}

	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
