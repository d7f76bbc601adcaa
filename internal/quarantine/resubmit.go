package quarantine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	csvparser "github.com/MIS-WV-DA-VI/risk-analysis/internal/parser/csv"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
	"github.com/MIS-WV-DA-VI/risk-analysis/pkg/records"
)

// EssentialColumns must all be present in a resubmitted report; a file
// missing any of them is rejected wholesale and left in place. Optional
// columns (disaster_type_raw, volume_loss_mt, sanitation_remarks,
// psgc_code) ride along when present.
var EssentialColumns = []string{
	"year",
	"event_date_start",
	"event_date_end",
	"province",
	"municipality",
	"commodity",
	"disaster_category",
	"disaster_name",
	"area_partially_damaged_ha",
	"area_totally_damaged_ha",
	"area_total_affected_ha",
	"farmers_affected",
	"losses_php_production_cost",
	"losses_php_farm_gate",
	"losses_php_grand_total",
	"source_row_number",
	"error_reason",
}

// ReadReport parses a corrected quarantine CSV back into RawRecords so the
// rows re-enter the pipeline at the very start; there is no special-casing of
// previously quarantined rows; they are validated again from scratch.
func ReadReport(path string) ([]schema.RawRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open resubmission: %w", err)
	}
	defer f.Close()

	p := csvparser.NewParser(csvparser.Options{TrimSpace: true})
	rows, headers, skipped, err := p.Parse(f)
	if err != nil {
		return nil, 0, fmt.Errorf("parse resubmission: %w", err)
	}

	present := map[string]bool{}
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, c := range EssentialColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, 0, fmt.Errorf("resubmission missing essential columns: %s", strings.Join(missing, ", "))
	}

	out := make([]schema.RawRecord, 0, len(rows))
	for _, rec := range rows {
		raw := schema.RawRecord{Cells: records.Record{}}
		for k, v := range rec {
			switch k {
			case "source_row_number":
				if s, ok := v.(string); ok {
					if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
						raw.SourceRow = n
					}
				}
			case "error_reason", "sanitation_remarks", "event_date_start", "event_date_end":
				// Stale derived fields: the pipeline re-derives them.
			default:
				raw.Cells[k] = v
			}
		}
		raw.Cells["date_range_str"] = dateRangeText(rec)
		out = append(out, raw)
	}
	return out, skipped, nil
}

// dateRangeText rebuilds a parseable date expression from the corrected
// event_date_start/event_date_end columns. Reviewers fix dates in those two
// ISO columns; the pipeline's own cascade then re-parses the result.
func dateRangeText(rec records.Record) any {
	start := parseISO(rec["event_date_start"])
	end := parseISO(rec["event_date_end"])
	switch {
	case start.IsZero():
		// Nothing usable; keep whatever the reviewer typed so the
		// validator can report it verbatim.
		if s, ok := rec["event_date_start"].(string); ok {
			return s
		}
		return nil
	case end.IsZero() || end.Equal(start):
		return start.Format("2006-01-02")
	default:
		return fmt.Sprintf("%s - %s", start.Format("January 2, 2006"), end.Format("January 2, 2006"))
	}
}

func parseISO(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
