// Package quarantine persists the erroneous partition for human review and
// reads corrected reports back into the pipeline. The quarantine store is
// not a log: each run's batch replaces the previous one, on the working
// assumption that a batch is reviewed and corrected before the next run.
package quarantine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/export"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/storage"
)

// Writer persists an erroneous batch: the delimited report for reviewers
// and, when a store is configured, a wholesale replace of the quarantine
// table.
type Writer struct {
	// ReportPath is the quarantine CSV the reviewers work on.
	ReportPath string

	// CleanColumns is the run's clean projection; the report adds
	// source_row_number and error_reason to it.
	CleanColumns []string

	// Repo and Table are optional; nil Repo skips the store write.
	Repo       storage.Repository
	Table      string
	AutoCreate bool
}

// Write replaces the previous quarantine contents with rows. Idempotent:
// running it twice with the same batch leaves the same state.
func (w Writer) Write(ctx context.Context, rows []schema.ValidatedRecord) error {
	if err := export.WriteErrors(w.ReportPath, w.CleanColumns, rows); err != nil {
		return fmt.Errorf("quarantine report: %w", err)
	}

	if w.Repo != nil {
		columns := schema.ErrorColumns(w.CleanColumns)
		if w.AutoCreate {
			if err := w.Repo.EnsureTable(ctx, w.Table, columns); err != nil {
				return err
			}
		}
		stored := make([][]any, len(rows))
		for i, r := range rows {
			projected := r.ErrorRow(columns)
			row := make([]any, len(projected))
			for j, v := range projected {
				row[j] = v
			}
			stored[i] = row
		}
		if _, err := w.Repo.Replace(ctx, w.Table, columns, stored); err != nil {
			return fmt.Errorf("quarantine store: %w", err)
		}
	}

	LogReasonSummary(rows)
	return nil
}

// LogReasonSummary logs a per-reason frequency table over the batch, most
// frequent first, so reviewers see at a glance what went wrong.
func LogReasonSummary(rows []schema.ValidatedRecord) {
	if len(rows) == 0 {
		return
	}
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.ErrorReason]++
	}
	type rc struct {
		reason string
		n      int
	}
	ordered := make([]rc, 0, len(counts))
	for reason, n := range counts {
		ordered = append(ordered, rc{reason, n})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].n != ordered[j].n {
			return ordered[i].n > ordered[j].n
		}
		return ordered[i].reason < ordered[j].reason
	})
	log.Printf("quarantine: %d rows, %d distinct reasons", len(rows), len(ordered))
	for _, e := range ordered {
		log.Printf("quarantine: %4d  %s", e.n, e.reason)
	}
}
