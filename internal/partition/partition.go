// Package partition splits a validated batch into the clean set and the
// quarantine-bound set, and computes the diagnostic year-span summary over
// the clean rows.
package partition

import (
	"log"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
)

// Summary holds diagnostic counts over the clean rows: how the parsed event
// start year compares with the reported year. These are logged for operator
// sanity-checking only; they gate nothing.
type Summary struct {
	Clean     int
	Erroneous int

	// Of the clean rows with a reported year:
	StartYearBefore int // event start year < reported year
	StartYearEqual  int // event start year == reported year
	StartYearAfter  int // event start year > reported year
}

// Split partitions a batch on ErrorReason. Source row numbers ride along on
// the erroneous records for traceability; the value columns themselves are
// the derived/normalized ones.
func Split(batch []schema.ValidatedRecord) (clean, erroneous []schema.ValidatedRecord, sum Summary) {
	for _, rec := range batch {
		if !rec.Clean() {
			erroneous = append(erroneous, rec)
			continue
		}
		clean = append(clean, rec)
		if rec.YearOriginal != nil && rec.ParsedDateRange.Valid() {
			switch startYear := rec.Start.Year(); {
			case startYear < *rec.YearOriginal:
				sum.StartYearBefore++
			case startYear == *rec.YearOriginal:
				sum.StartYearEqual++
			default:
				sum.StartYearAfter++
			}
		}
	}
	sum.Clean = len(clean)
	sum.Erroneous = len(erroneous)
	return clean, erroneous, sum
}

// Log emits the year-comparison summary in the run log.
func (s Summary) Log() {
	log.Printf("partition: clean=%d erroneous=%d", s.Clean, s.Erroneous)
	log.Printf("partition: start_year<reported=%d start_year==reported=%d start_year>reported=%d",
		s.StartYearBefore, s.StartYearEqual, s.StartYearAfter)
}
