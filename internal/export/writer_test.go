package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
)

func sample() schema.ValidatedRecord {
	start := time.Date(2020, time.March, 5, 0, 0, 0, 0, time.UTC)
	return schema.ValidatedRecord{
		NormalizedRecord: schema.NormalizedRecord{
			SourceRow:           7,
			Province:            "ILOILO",
			Municipality:        "MIAGAO",
			Commodity:           "RICE",
			LossesPHPGrandTotal: 1250000.5,
		},
		ParsedDateRange: schema.ParsedDateRange{Start: start, End: start, Remark: "Parsed as a single day event."},
		Year:            2020,
	}
}

/*
TestWriteClean checks the on-disk shape of the clean output: UTF-8 BOM,
header row matching the projection, ISO dates, and plain decimal numbers.
*/
func TestWriteClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "clean.csv")
	if err := WriteClean(path, schema.CleanColumns, []schema.ValidatedRecord{sample()}); err != nil {
		t.Fatalf("WriteClean: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, bom) {
		t.Fatal("output does not start with a UTF-8 BOM")
	}

	rows, err := csv.NewReader(bytes.NewReader(data[len(bom):])).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if !reflect.DeepEqual(rows[0], schema.CleanColumns) {
		t.Fatalf("header = %v", rows[0])
	}

	cell := func(name string) string {
		for i, c := range schema.CleanColumns {
			if c == name {
				return rows[1][i]
			}
		}
		t.Fatalf("column %q missing", name)
		return ""
	}
	if cell("year") != "2020" || cell("event_date_start") != "2020-03-05" || cell("event_date_end") != "2020-03-05" {
		t.Fatalf("date cells = %v", rows[1])
	}
	if cell("losses_php_grand_total") != "1250000.5" {
		t.Fatalf("grand total = %q", cell("losses_php_grand_total"))
	}
	if cell("sanitation_remarks") != "Parsed as a single day event." {
		t.Fatalf("remarks = %q", cell("sanitation_remarks"))
	}
}

/*
TestWriteErrors checks the quarantine report shape: the clean projection
plus the two trailing traceability columns, and that an empty batch still
produces the header.
*/
func TestWriteErrors(t *testing.T) {
	dir := t.TempDir()

	bad := sample()
	bad.ErrorReason = "Missing or zero Grand Total for PHP loss."
	path := filepath.Join(dir, "errors.csv")
	if err := WriteErrors(path, schema.CleanColumns, []schema.ValidatedRecord{bad}); err != nil {
		t.Fatalf("WriteErrors: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data[len(bom):])).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := schema.ErrorColumns(schema.CleanColumns)
	if !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("header = %v, want %v", rows[0], want)
	}
	last := rows[1][len(rows[1])-2:]
	if last[0] != "7" || last[1] != bad.ErrorReason {
		t.Fatalf("traceability cells = %v", last)
	}

	empty := filepath.Join(dir, "empty.csv")
	if err := WriteErrors(empty, schema.CleanColumns, nil); err != nil {
		t.Fatalf("WriteErrors(empty): %v", err)
	}
	data, err = os.ReadFile(empty)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 1 {
		t.Fatalf("empty report has %d lines, want header only", got)
	}
}
