package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/config"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/reconcile"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
)

const testSheet = "Consolidated 2010 - Present"

// fakeRepo records store calls in memory. A non-nil appendErr makes every
// Append fail, simulating a broken destination store.
type fakeRepo struct {
	ensured   []string
	appended  map[string][][]any
	replaced  map[string][][]any
	appendErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appended: map[string][][]any{}, replaced: map[string][][]any{}}
}

func (f *fakeRepo) EnsureTable(_ context.Context, table string, _ []string) error {
	f.ensured = append(f.ensured, table)
	return nil
}

func (f *fakeRepo) Append(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.appended[table] = append(f.appended[table], rows...)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Replace(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	f.replaced[table] = rows
	return int64(len(rows)), nil
}

func (f *fakeRepo) Close() {}

var consolidatedHeader = []any{
	"YEAR (DATE OF OCCURENCE)",
	"ACTUAL DATE OF OCCURENCE",
	"PROVINCE AFFECTED",
	"MUNICIPALITY AFFECTED",
	"COMMODITY",
	"GRAND TOTAL",
}

func writeWorkbook(t *testing.T, path string, header []any, dataRows ...[]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", testSheet); err != nil {
		t.Fatal(err)
	}
	rows := append([][]any{{"REGION VI CONSOLIDATED LOSSES"}, header}, dataRows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(testSheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func testRunner(t *testing.T, repo *fakeRepo) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Pipeline{
		Input: config.Input{
			InboxDir:     filepath.Join(dir, "inbox"),
			ProcessedDir: filepath.Join(dir, "processed"),
			Sheet:        testSheet,
			HeaderRow:    2,
		},
		Output: config.Output{
			CleanCSV: filepath.Join(dir, "out", "clean.csv"),
			ErrorCSV: filepath.Join(dir, "out", "errors.csv"),
		},
		Resubmit: config.Resubmit{
			InboxDir:     filepath.Join(dir, "resubmit"),
			ProcessedDir: filepath.Join(dir, "resubmit_processed"),
		},
		Storage: config.Storage{
			Kind:            "fake",
			CleanTable:      "disaster_events",
			QuarantineTable: "quarantined_disasters",
			AutoCreateTable: true,
		},
	}
	lookup, _ := reconcile.NewLookup([]reconcile.Entry{
		{Province: "ILOILO", Municipality: "MIAGAO", PSGC: "0630417000"},
	})
	r := &Runner{Cfg: cfg, Lookup: lookup}
	if repo != nil {
		r.Repo = repo
	}
	if err := os.MkdirAll(cfg.Input.InboxDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return r, dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func cell(t *testing.T, header []string, row []string, name string) string {
	t.Helper()
	for i, h := range header {
		if h == name {
			return row[i]
		}
	}
	t.Fatalf("column %q missing from %v", name, header)
	return ""
}

/*
TestRunImport carries a mixed workbook end to end: a clean row lands in
the clean report and the store with its PSGC code, a bad row lands in
quarantine with every violated rule, and the file moves to the processed
directory.
*/
func TestRunImport(t *testing.T) {
	repo := newFakeRepo()
	r, _ := testRunner(t, repo)
	in := r.Cfg.Input

	writeWorkbook(t, filepath.Join(in.InboxDir, "losses.xlsx"), consolidatedHeader,
		[]any{"2020", "March 5-7, 2020", "Iloilo", "Miagao", "0101 - Rice", "1,000"},
		[]any{"2020", "definitely not a date", "Iloilo", "Miagao", "Corn", "0"},
	)

	if err := r.RunImport(context.Background()); err != nil {
		t.Fatalf("RunImport: %v", err)
	}

	// File archived, inbox empty.
	if _, err := os.Stat(filepath.Join(in.ProcessedDir, "losses.xlsx")); err != nil {
		t.Fatalf("workbook not archived: %v", err)
	}
	left, _ := os.ReadDir(in.InboxDir)
	if len(left) != 0 {
		t.Fatalf("inbox still holds %d files", len(left))
	}

	// Clean report: one row, dates derived, PSGC joined.
	clean := readCSV(t, r.Cfg.Output.CleanCSV)
	if len(clean) != 2 {
		t.Fatalf("clean report has %d rows, want header + 1", len(clean))
	}
	header := clean[0]
	if header[len(header)-1] != schema.PSGCColumn {
		t.Fatalf("clean header = %v, want psgc_code last", header)
	}
	row := clean[1]
	if got := cell(t, header, row, "event_date_start"); got != "2020-03-05" {
		t.Fatalf("event_date_start = %q", got)
	}
	if got := cell(t, header, row, "event_date_end"); got != "2020-03-07" {
		t.Fatalf("event_date_end = %q", got)
	}
	if got := cell(t, header, row, "commodity"); got != "RICE" {
		t.Fatalf("commodity = %q", got)
	}
	if got := cell(t, header, row, "psgc_code"); got != "0630417000" {
		t.Fatalf("psgc_code = %q", got)
	}

	// Quarantine report: one row, both violations, traced to sheet row 4.
	errs := readCSV(t, r.Cfg.Output.ErrorCSV)
	if len(errs) != 2 {
		t.Fatalf("error report has %d rows, want header + 1", len(errs))
	}
	reason := cell(t, errs[0], errs[1], "error_reason")
	if !strings.Contains(reason, "Unparseable date") || !strings.Contains(reason, "zero Grand Total") {
		t.Fatalf("error_reason = %q", reason)
	}
	if got := cell(t, errs[0], errs[1], "source_row_number"); got != "4" {
		t.Fatalf("source_row_number = %q", got)
	}

	// Store: clean appended, quarantine replaced.
	if got := repo.appended["disaster_events"]; len(got) != 1 {
		t.Fatalf("store appended %d clean rows, want 1", len(got))
	}
	if got := repo.replaced["quarantined_disasters"]; len(got) != 1 {
		t.Fatalf("store holds %d quarantine rows, want 1", len(got))
	}
}

/*
TestRunImport_RejectedFileStaysPut: a workbook missing a required column is
rejected wholesale and left in the inbox, while other files in the same
run still go through.
*/
func TestRunImport_RejectedFileStaysPut(t *testing.T) {
	r, _ := testRunner(t, nil)
	in := r.Cfg.Input

	writeWorkbook(t, filepath.Join(in.InboxDir, "a_bad.xlsx"),
		[]any{"PROVINCE AFFECTED", "MUNICIPALITY AFFECTED"},
		[]any{"Iloilo", "Miagao"},
	)
	writeWorkbook(t, filepath.Join(in.InboxDir, "b_good.xlsx"), consolidatedHeader,
		[]any{"2020", "March 5, 2020", "Iloilo", "Miagao", "Rice", "1,000"},
	)

	if err := r.RunImport(context.Background()); err != nil {
		t.Fatalf("RunImport: %v", err)
	}

	if _, err := os.Stat(filepath.Join(in.InboxDir, "a_bad.xlsx")); err != nil {
		t.Fatalf("rejected workbook should stay in the inbox: %v", err)
	}
	if _, err := os.Stat(filepath.Join(in.ProcessedDir, "b_good.xlsx")); err != nil {
		t.Fatalf("good workbook not archived: %v", err)
	}
	clean := readCSV(t, r.Cfg.Output.CleanCSV)
	if len(clean) != 2 {
		t.Fatalf("clean report has %d rows, want header + 1", len(clean))
	}
}

/*
TestRunImport_DuplicateContentSkipped: a file whose content matches an
already archived file is moved out of the inbox without re-importing its
rows.
*/
func TestRunImport_DuplicateContentSkipped(t *testing.T) {
	r, _ := testRunner(t, nil)
	in := r.Cfg.Input

	path := filepath.Join(in.InboxDir, "losses.xlsx")
	writeWorkbook(t, path, consolidatedHeader,
		[]any{"2020", "March 5, 2020", "Iloilo", "Miagao", "Rice", "1,000"},
	)
	if err := r.RunImport(context.Background()); err != nil {
		t.Fatalf("first RunImport: %v", err)
	}

	// Re-drop an identical copy under a new name.
	archived, err := os.ReadFile(filepath.Join(in.ProcessedDir, "losses.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	redropped := filepath.Join(in.InboxDir, "losses_copy.xlsx")
	if err := os.WriteFile(redropped, archived, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.RunImport(context.Background()); err != nil {
		t.Fatalf("second RunImport: %v", err)
	}

	if _, err := os.Stat(redropped); !os.IsNotExist(err) {
		t.Fatalf("duplicate not moved out of the inbox: %v", err)
	}
	if _, err := os.Stat(filepath.Join(in.ProcessedDir, "losses_copy.xlsx")); err != nil {
		t.Fatalf("duplicate not archived: %v", err)
	}
	// The duplicate contributed no rows; the clean report still holds only
	// the first run's single row.
	clean := readCSV(t, r.Cfg.Output.CleanCSV)
	if len(clean) != 2 {
		t.Fatalf("clean report has %d rows, want header + 1", len(clean))
	}
}

/*
TestRunResubmit closes the loop: rows from the quarantine report, with the
dates and values corrected, re-enter the pipeline and come out clean.
*/
func TestRunResubmit(t *testing.T) {
	repo := newFakeRepo()
	r, _ := testRunner(t, repo)
	in := r.Cfg.Input

	writeWorkbook(t, filepath.Join(in.InboxDir, "losses.xlsx"), consolidatedHeader,
		[]any{"2020", "not a date", "Iloilo", "Miagao", "Rice", "1,000"},
	)
	if err := r.RunImport(context.Background()); err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	errs := readCSV(t, r.Cfg.Output.ErrorCSV)
	if len(errs) != 2 {
		t.Fatalf("expected one quarantined row, got %d", len(errs)-1)
	}

	// Correct the report: fix the date columns, keep everything else.
	header, row := errs[0], errs[1]
	for i, h := range header {
		switch h {
		case "event_date_start":
			row[i] = "2020-03-05"
		case "event_date_end":
			row[i] = "2020-03-07"
		}
	}
	var b bytes.Buffer
	cw := csv.NewWriter(&b)
	cw.Write(header)
	cw.Write(row)
	cw.Flush()
	corrected := filepath.Join(r.Cfg.Resubmit.InboxDir, "corrected.csv")
	if err := os.MkdirAll(r.Cfg.Resubmit.InboxDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(corrected, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := r.RunResubmit(context.Background()); err != nil {
		t.Fatalf("RunResubmit: %v", err)
	}

	clean := readCSV(t, r.Cfg.Output.CleanCSV)
	if len(clean) != 2 {
		t.Fatalf("clean report has %d rows, want header + 1", len(clean))
	}
	if got := cell(t, clean[0], clean[1], "event_date_start"); got != "2020-03-05" {
		t.Fatalf("event_date_start = %q", got)
	}
	// Quarantine is now empty and the store cleared.
	errs = readCSV(t, r.Cfg.Output.ErrorCSV)
	if len(errs) != 1 {
		t.Fatalf("quarantine report has %d rows, want header only", len(errs))
	}
	if got := repo.replaced["quarantined_disasters"]; len(got) != 0 {
		t.Fatalf("quarantine store holds %d rows after resubmission", len(got))
	}
	if _, err := os.Stat(filepath.Join(r.Cfg.Resubmit.ProcessedDir, "corrected.csv")); err != nil {
		t.Fatalf("corrected report not archived: %v", err)
	}
}

/*
TestRunImport_NativeDateCells: a date-typed spreadsheet cell (not text)
parses cleanly and lands in the clean report with ISO dates, rather than
being quarantined over its display rendering.
*/
func TestRunImport_NativeDateCells(t *testing.T) {
	r, _ := testRunner(t, nil)
	in := r.Cfg.Input

	writeWorkbook(t, filepath.Join(in.InboxDir, "losses.xlsx"), consolidatedHeader,
		[]any{"2020", time.Date(2020, time.March, 5, 0, 0, 0, 0, time.UTC), "Iloilo", "Miagao", "Rice", "1,000"},
	)
	if err := r.RunImport(context.Background()); err != nil {
		t.Fatalf("RunImport: %v", err)
	}

	clean := readCSV(t, r.Cfg.Output.CleanCSV)
	if len(clean) != 2 {
		errs := readCSV(t, r.Cfg.Output.ErrorCSV)
		var reason string
		if len(errs) > 1 {
			reason = cell(t, errs[0], errs[1], "error_reason")
		}
		t.Fatalf("clean report has %d rows, want header + 1 (quarantined: %q)", len(clean), reason)
	}
	if got := cell(t, clean[0], clean[1], "event_date_start"); got != "2020-03-05" {
		t.Fatalf("event_date_start = %q", got)
	}
	if got := cell(t, clean[0], clean[1], "event_date_end"); got != "2020-03-05" {
		t.Fatalf("event_date_end = %q", got)
	}
}

/*
TestRunImport_StoreFailureFailsRun: a failing clean-store write stops the
run with the error and leaves the workbook in the inbox for the retry.
*/
func TestRunImport_StoreFailureFailsRun(t *testing.T) {
	repo := newFakeRepo()
	repo.appendErr = errors.New("disk full")
	r, _ := testRunner(t, repo)
	in := r.Cfg.Input

	writeWorkbook(t, filepath.Join(in.InboxDir, "losses.xlsx"), consolidatedHeader,
		[]any{"2020", "March 5, 2020", "Iloilo", "Miagao", "Rice", "1,000"},
	)

	err := r.RunImport(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("RunImport error = %v, want the store failure", err)
	}
	if _, statErr := os.Stat(filepath.Join(in.InboxDir, "losses.xlsx")); statErr != nil {
		t.Fatalf("workbook should stay in the inbox: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(in.ProcessedDir, "losses.xlsx")); !os.IsNotExist(statErr) {
		t.Fatalf("workbook archived despite the store failure: %v", statErr)
	}
}

/*
TestRunResubmit_StoreFailureLeavesReport: when the clean-store write fails
during a resubmission run, the run fails and the corrected report stays in
the resubmit inbox instead of being archived with its rows lost.
*/
func TestRunResubmit_StoreFailureLeavesReport(t *testing.T) {
	r, _ := testRunner(t, nil)
	in := r.Cfg.Input

	writeWorkbook(t, filepath.Join(in.InboxDir, "losses.xlsx"), consolidatedHeader,
		[]any{"2020", "not a date", "Iloilo", "Miagao", "Rice", "1,000"},
	)
	if err := r.RunImport(context.Background()); err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	errs := readCSV(t, r.Cfg.Output.ErrorCSV)
	if len(errs) != 2 {
		t.Fatalf("expected one quarantined row, got %d", len(errs)-1)
	}

	header, row := errs[0], errs[1]
	for i, h := range header {
		switch h {
		case "event_date_start":
			row[i] = "2020-03-05"
		case "event_date_end":
			row[i] = "2020-03-05"
		}
	}
	var b bytes.Buffer
	cw := csv.NewWriter(&b)
	cw.Write(header)
	cw.Write(row)
	cw.Flush()
	corrected := filepath.Join(r.Cfg.Resubmit.InboxDir, "corrected.csv")
	if err := os.MkdirAll(r.Cfg.Resubmit.InboxDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(corrected, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := newFakeRepo()
	repo.appendErr = errors.New("disk full")
	r.Repo = repo

	err := r.RunResubmit(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("RunResubmit error = %v, want the store failure", err)
	}
	if _, statErr := os.Stat(corrected); statErr != nil {
		t.Fatalf("corrected report should stay in the resubmit inbox: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(r.Cfg.Resubmit.ProcessedDir, "corrected.csv")); !os.IsNotExist(statErr) {
		t.Fatalf("corrected report archived despite the store failure: %v", statErr)
	}
}

/*
TestRunImport_EmptyInbox is a no-op run: no files, no output writes.
*/
func TestRunImport_EmptyInbox(t *testing.T) {
	r, _ := testRunner(t, nil)
	if err := r.RunImport(context.Background()); err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	if _, err := os.Stat(r.Cfg.Output.CleanCSV); !os.IsNotExist(err) {
		t.Fatalf("empty run wrote outputs: %v", err)
	}
}
