// Package ingest drives the pipeline: it scans the inbox, processes one
// file at a time to completion, and archives what it finishes. Row-level
// problems land in quarantine; file-level (structural) problems leave the
// file in the inbox for operator inspection; only a broken destination
// store stops the run.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/config"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/daterange"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/export"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/metrics"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/normalize"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/parser/xlsx"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/partition"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/quarantine"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/reconcile"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/storage"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/validate"
)

// State tracks where a file got to. A file either reaches StateArchived or
// stops at StateRejected; there is no partial success for a single file.
type State string

const (
	StateRead        State = "read"
	StateNormalized  State = "normalized"
	StateValidated   State = "validated"
	StatePartitioned State = "partitioned"
	StateArchived    State = "archived"
	StateRejected    State = "rejected"
)

// Runner executes import and resubmission runs. Repo and Lookup are
// optional: a nil Repo skips the store writes, a nil Lookup disables the
// PSGC join and its rule.
type Runner struct {
	Cfg    config.Pipeline
	Repo   storage.Repository
	Lookup *reconcile.Lookup
}

// FileReport summarizes one input file for the run log.
type FileReport struct {
	Path        string
	State       State
	Rows        int
	Clean       int
	Quarantined int
	Err         error

	clean     []schema.ValidatedRecord
	erroneous []schema.ValidatedRecord
}

// cleanColumns is the run's clean projection: the fixed set, plus psgc_code
// when a lookup is configured.
func (r *Runner) cleanColumns() []string {
	if r.Lookup == nil {
		return schema.CleanColumns
	}
	out := make([]string, 0, len(schema.CleanColumns)+1)
	out = append(out, schema.CleanColumns...)
	return append(out, schema.PSGCColumn)
}

// RunImport processes every spreadsheet in the inbox, one at a time, then
// writes the run-level outputs: the clean report, the quarantine report,
// and the store tables.
func (r *Runner) RunImport(ctx context.Context) error {
	in := r.Cfg.Input
	for _, dir := range []string{in.InboxDir, in.ProcessedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	files, err := listFiles(in.InboxDir, ".xlsx")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Printf("ingest: no new spreadsheets in %s", in.InboxDir)
		return nil
	}
	log.Printf("ingest: %d spreadsheet(s) to process", len(files))

	archived, err := newArchiveIndex(in.ProcessedDir)
	if err != nil {
		return err
	}

	reader := xlsx.NewReader(xlsx.Options{
		Sheet:     in.Sheet,
		HeaderRow: in.HeaderRow,
		HeaderMap: normalize.HeaderMap,
	})

	var allClean, allErroneous []schema.ValidatedRecord
	var reports []FileReport
	firstStore := true

	for _, path := range files {
		if dup, err := archived.Seen(path); err != nil {
			return err
		} else if dup {
			log.Printf("ingest: %s has identical content to an archived file; skipping re-import", filepath.Base(path))
			metrics.RecordFile("duplicate")
			if err := archiveFile(path, in.ProcessedDir); err != nil {
				return err
			}
			continue
		}

		rep, err := r.processSpreadsheet(ctx, reader, path, &firstStore)
		if err != nil {
			return err
		}
		reports = append(reports, rep)
		if rep.State == StateRejected {
			metrics.RecordFile("rejected")
			log.Printf("ingest: %s rejected and left in place: %v", filepath.Base(path), rep.Err)
			continue
		}

		allClean = append(allClean, rep.clean...)
		allErroneous = append(allErroneous, rep.erroneous...)

		if err := archiveFile(path, in.ProcessedDir); err != nil {
			return err
		}
		if err := archived.Add(filepath.Join(in.ProcessedDir, filepath.Base(path))); err != nil {
			return err
		}
		metrics.RecordFile("archived")
		log.Printf("ingest: %s: rows=%d clean=%d quarantined=%d archived",
			filepath.Base(path), rep.Rows, rep.Clean, rep.Quarantined)
	}

	return r.finishRun(ctx, reports, allClean, allErroneous)
}

// RunResubmit processes corrected quarantine reports from the resubmission
// inbox. Rows re-enter at the RawRecord stage and are validated from
// scratch.
func (r *Runner) RunResubmit(ctx context.Context) error {
	rs := r.Cfg.Resubmit
	if rs.InboxDir == "" {
		return fmt.Errorf("no resubmit inbox configured")
	}
	for _, dir := range []string{rs.InboxDir, rs.ProcessedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	files, err := listFiles(rs.InboxDir, ".csv")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Printf("ingest: no resubmitted reports in %s", rs.InboxDir)
		return nil
	}

	var allClean, allErroneous []schema.ValidatedRecord
	var reports []FileReport
	firstStore := true

	for _, path := range files {
		started := time.Now()
		raws, skipped, err := quarantine.ReadReport(path)
		metrics.RecordStep("read", err, time.Since(started))
		if err != nil {
			metrics.RecordFile("rejected")
			log.Printf("ingest: %s rejected and left in place: %v", filepath.Base(path), err)
			reports = append(reports, FileReport{Path: path, State: StateRejected, Err: err})
			continue
		}
		if skipped > 0 {
			log.Printf("ingest: %s: skipped %d malformed rows", filepath.Base(path), skipped)
		}

		rep, err := r.processRows(ctx, path, raws, &firstStore)
		if err != nil {
			// The report stays in the resubmit inbox for the retry.
			return err
		}
		reports = append(reports, rep)
		allClean = append(allClean, rep.clean...)
		allErroneous = append(allErroneous, rep.erroneous...)

		if err := archiveFile(path, rs.ProcessedDir); err != nil {
			return err
		}
		metrics.RecordFile("archived")
		log.Printf("ingest: %s: rows=%d clean=%d quarantined=%d archived",
			filepath.Base(path), rep.Rows, rep.Clean, rep.Quarantined)
	}

	return r.finishRun(ctx, reports, allClean, allErroneous)
}

// processSpreadsheet carries one workbook through read → normalize →
// validate → partition. A structural failure (unreadable file, missing
// sheet, missing required columns) rejects the whole file; a returned error
// is run-fatal.
func (r *Runner) processSpreadsheet(ctx context.Context, reader *xlsx.Reader, path string, firstStore *bool) (FileReport, error) {
	started := time.Now()
	raws, headers, err := reader.Parse(path)
	metrics.RecordStep("read", err, time.Since(started))
	if err != nil {
		return FileReport{Path: path, State: StateRejected, Err: err}, nil
	}

	if missing := missingRequired(headers); len(missing) > 0 {
		return FileReport{
			Path:  path,
			State: StateRejected,
			Err:   fmt.Errorf("missing required columns: %v", missing),
		}, nil
	}

	return r.processRows(ctx, path, raws, firstStore)
}

// processRows runs the row pipeline and the per-file store append. A store
// write failure comes back as an error: the destination store being broken
// is the one problem that must stop the run, before the file is archived.
func (r *Runner) processRows(ctx context.Context, path string, raws []schema.RawRecord, firstStore *bool) (FileReport, error) {
	rep := FileReport{Path: path, State: StateRead, Rows: len(raws)}
	metrics.RecordRows("read", len(raws))

	rules := validate.Rules{LookupConfigured: r.Lookup != nil}
	validated := make([]schema.ValidatedRecord, 0, len(raws))
	started := time.Now()
	for _, raw := range raws {
		validated = append(validated, r.pipelineRow(raw, rules))
	}
	rep.State = StateValidated
	metrics.RecordStep("validate", nil, time.Since(started))

	clean, erroneous, sum := partition.Split(validated)
	rep.State = StatePartitioned
	rep.Clean, rep.Quarantined = len(clean), len(erroneous)
	rep.clean, rep.erroneous = clean, erroneous
	sum.Log()
	metrics.RecordRows("clean", len(clean))
	metrics.RecordRows("quarantined", len(erroneous))

	// Whole-batch append per file; the first batch of an overwrite run
	// replaces the table instead.
	if r.Repo != nil && len(clean) > 0 {
		started = time.Now()
		err := r.storeClean(ctx, clean, firstStore)
		metrics.RecordStep("store", err, time.Since(started))
		if err != nil {
			return rep, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return rep, nil
}

// pipelineRow is the full per-row derivation: normalize, parse the date
// range, join the PSGC code, derive the canonical year, validate.
func (r *Runner) pipelineRow(raw schema.RawRecord, rules validate.Rules) schema.ValidatedRecord {
	norm := normalize.Record(raw)

	rng, ok, reason := daterange.Parse(norm.DateRangeRaw, norm.YearOriginal)
	if !ok {
		rng = schema.ParsedDateRange{Remark: reason}
	}

	if r.Lookup != nil {
		if code, found := r.Lookup.Code(norm.Province, norm.Municipality); found {
			norm.PSGCCode = code
		}
	}

	v := schema.ValidatedRecord{NormalizedRecord: norm, ParsedDateRange: rng}
	switch {
	case rng.Valid():
		// The parsed start date supersedes the reported year column.
		v.Year = rng.Start.Year()
	case norm.YearOriginal != nil:
		v.Year = *norm.YearOriginal
	}

	v.ErrorReason = validate.Join(rules.Violations(v))
	return v
}

func (r *Runner) storeClean(ctx context.Context, clean []schema.ValidatedRecord, firstStore *bool) error {
	columns := r.cleanColumns()
	st := r.Cfg.Storage
	if st.AutoCreateTable {
		if err := r.Repo.EnsureTable(ctx, st.CleanTable, columns); err != nil {
			return err
		}
	}
	rows := make([][]any, len(clean))
	for i, rec := range clean {
		projected := rec.CleanRow(columns)
		row := make([]any, len(projected))
		for j, val := range projected {
			row[j] = val
		}
		rows[i] = row
	}

	var n int64
	var err error
	if st.Overwrite && *firstStore {
		n, err = r.Repo.Replace(ctx, st.CleanTable, columns, rows)
	} else {
		n, err = r.Repo.Append(ctx, st.CleanTable, columns, rows)
	}
	if err != nil {
		return fmt.Errorf("store clean rows: %w", err)
	}
	*firstStore = false
	log.Printf("ingest: stored %d clean rows into %s", n, st.CleanTable)
	return nil
}

// finishRun writes the run-level outputs and the closing summary.
func (r *Runner) finishRun(ctx context.Context, reports []FileReport, clean, erroneous []schema.ValidatedRecord) error {
	columns := r.cleanColumns()

	processed := 0
	rejected := 0
	for _, rep := range reports {
		if rep.State == StateRejected {
			rejected++
		} else {
			processed++
		}
	}
	if processed == 0 && rejected == 0 {
		return nil
	}

	started := time.Now()
	err := export.WriteClean(r.Cfg.Output.CleanCSV, columns, clean)
	metrics.RecordStep("export", err, time.Since(started))
	if err != nil {
		return err
	}

	w := quarantine.Writer{
		ReportPath:   r.Cfg.Output.ErrorCSV,
		CleanColumns: columns,
		Repo:         r.Repo,
		Table:        r.Cfg.Storage.QuarantineTable,
		AutoCreate:   r.Cfg.Storage.AutoCreateTable,
	}
	started = time.Now()
	err = w.Write(ctx, erroneous)
	metrics.RecordStep("quarantine", err, time.Since(started))
	if err != nil {
		return err
	}

	log.Printf("ingest: run complete: files_processed=%d files_rejected=%d clean=%d quarantined=%d",
		processed, rejected, len(clean), len(erroneous))
	return nil
}

// missingRequired canonicalizes the present headers and reports which
// required columns are absent.
func missingRequired(headers []string) []string {
	present := map[string]bool{}
	for _, h := range headers {
		if c, ok := normalize.Canonical(h); ok {
			present[c] = true
		}
	}
	var missing []string
	for _, c := range normalize.RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
