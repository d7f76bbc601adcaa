// Package export writes the flat delimited outputs: the clean projection
// and the quarantine report. Both start with a UTF-8 byte-order mark so
// spreadsheet tools open them with the right encoding, matching how field
// offices review the reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// WriteClean writes the clean rows under the given projection to path,
// creating parent directories as needed.
func WriteClean(path string, columns []string, rows []schema.ValidatedRecord) error {
	return writeFile(path, columns, rows, func(r schema.ValidatedRecord) []string {
		return r.CleanRow(columns)
	})
}

// WriteErrors writes the quarantine report: clean projection plus
// source_row_number and error_reason. An empty batch still produces the
// header so downstream consumers see a stable schema.
func WriteErrors(path string, cleanColumns []string, rows []schema.ValidatedRecord) error {
	columns := schema.ErrorColumns(cleanColumns)
	return writeFile(path, columns, rows, func(r schema.ValidatedRecord) []string {
		return r.ErrorRow(columns)
	})
}

func writeFile(path string, columns []string, rows []schema.ValidatedRecord, project func(schema.ValidatedRecord) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteTable(f, columns, projectAll(rows, project)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func projectAll(rows []schema.ValidatedRecord, project func(schema.ValidatedRecord) []string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = project(r)
	}
	return out
}

// WriteTable writes a BOM, a header row, and the data rows to w.
func WriteTable(w io.Writer, columns []string, rows [][]string) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
