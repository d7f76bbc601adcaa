// Package xlsx reads the consolidated disaster workbooks. It knows about
// the fixed header row offset and the target sheet name, drops unnamed
// filler columns and fully blank rows, and keeps the original sheet row
// number on every record so quarantined rows can be traced back to the
// workbook.
package xlsx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
	"github.com/MIS-WV-DA-VI/risk-analysis/pkg/records"
)

// Options configures the workbook reader.
type Options struct {
	// Sheet is the sheet name to read. Required; a missing sheet is a
	// structural failure for the whole file.
	Sheet string

	// HeaderRow is the 1-based sheet row holding the column headers. Data
	// rows start on the next row. The consolidated workbooks carry a title
	// row above the headers, so this is typically 2.
	HeaderRow int

	// HeaderMap maps raw headers to canonical names before the required-
	// column check. Unmapped headers are kept trimmed.
	HeaderMap map[string]string
}

// Reader parses XLSX workbooks according to Options.
type Reader struct{ opt Options }

// NewReader constructs a Reader. A zero HeaderRow defaults to 1.
func NewReader(opt Options) *Reader {
	if opt.HeaderRow < 1 {
		opt.HeaderRow = 1
	}
	return &Reader{opt: opt}
}

// Parse reads the configured sheet and returns one RawRecord per non-blank
// data row, plus the canonical headers present. Errors here are structural:
// unreadable file, missing sheet, header row beyond the sheet.
func (r *Reader) Parse(path string) ([]schema.RawRecord, []string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.opt.Sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", r.opt.Sheet, err)
	}
	if len(rows) < r.opt.HeaderRow {
		return nil, nil, fmt.Errorf("sheet %q has %d rows, header expected at row %d", r.opt.Sheet, len(rows), r.opt.HeaderRow)
	}

	headers := r.headers(rows[r.opt.HeaderRow-1])

	var out []schema.RawRecord
	for i := r.opt.HeaderRow; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		rec := make(records.Record, len(headers))
		for col, name := range headers {
			if name == "" {
				// Unnamed filler column.
				continue
			}
			var val any
			if col < len(row) {
				if s := strings.TrimSpace(row[col]); s != "" {
					val = s
					// Date cells hold a day serial that GetRows has
					// rendered as display text ("3/5/20 00:00"); surface
					// them as a typed date instead.
					if t, ok := r.dateCell(f, col+1, i+1); ok {
						val = t
					}
				}
			}
			rec[name] = val
		}
		out = append(out, schema.RawRecord{
			SourceRow: i + 1, // 1-based sheet row, header offset included
			Cells:     rec,
		})
	}

	present := make([]string, 0, len(headers))
	for _, h := range headers {
		if h != "" {
			present = append(present, h)
		}
	}
	return out, present, nil
}

func (r *Reader) headers(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		c := strings.TrimSpace(h)
		if c == "" {
			continue
		}
		if r.opt.HeaderMap != nil {
			if m, ok := r.opt.HeaderMap[c]; ok && m != "" {
				c = m
			}
		}
		out[i] = c
	}
	return out
}

// dateCell reports whether the cell at (col, row), both 1-based, holds a
// date: a numeric serial styled with a date number format. The serial is
// converted with the workbook's 1900 epoch.
func (r *Reader) dateCell(f *excelize.File, col, row int) (time.Time, bool) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return time.Time{}, false
	}
	raw, err := f.GetCellValue(r.opt.Sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return time.Time{}, false
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return time.Time{}, false
	}
	styleID, err := f.GetCellStyle(r.opt.Sheet, ref)
	if err != nil {
		return time.Time{}, false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil || !isDateFormat(style) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// isDateFormat reports whether a cell style renders dates or times. The
// built-in number formats 14-22, 27-36, 45-47, and 50-58 are date/time
// formats; custom formats are scanned for date tokens.
func isDateFormat(s *excelize.Style) bool {
	switch {
	case s.NumFmt >= 14 && s.NumFmt <= 22,
		s.NumFmt >= 27 && s.NumFmt <= 36,
		s.NumFmt >= 45 && s.NumFmt <= 47,
		s.NumFmt >= 50 && s.NumFmt <= 58:
		return true
	}
	if s.CustomNumFmt == nil {
		return false
	}
	return customFormatHasDate(*s.CustomNumFmt)
}

// customFormatHasDate scans a custom number format for date tokens
// (y/m/d/h/s), skipping quoted literals, bracketed sections, and escapes.
func customFormatHasDate(format string) bool {
	inQuote := false
	inBracket := false
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case inBracket:
			if c == ']' {
				inBracket = false
			}
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\':
			i++
		case c == 'y' || c == 'm' || c == 'd' || c == 'h' || c == 's' ||
			c == 'Y' || c == 'M' || c == 'D' || c == 'H' || c == 'S':
			return true
		}
	}
	return false
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
