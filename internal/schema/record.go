// Package schema defines the typed records that flow through the sanitation
// pipeline. Column presence is explicit: optional fields are pointers or
// empty strings, never reflective map lookups, so each stage states exactly
// which fields it needs.
package schema

import (
	"time"

	"github.com/MIS-WV-DA-VI/risk-analysis/pkg/records"
)

// RawRecord is one spreadsheet row exactly as read. It is never mutated and
// is the source of truth for error reporting.
type RawRecord struct {
	// SourceRow is the 1-based row number in the sheet, header offset
	// included, so an operator can find the row in the original workbook.
	SourceRow int

	// Cells maps the original (or canonical, for resubmitted rows) header
	// to the untyped cell value.
	Cells records.Record
}

// NormalizedRecord is a RawRecord after header renaming and type coercion.
// Numeric measures default to 0 when the cell is unparseable; that is a
// policy, not an error (only a zero grand total is flagged, by the
// validator).
type NormalizedRecord struct {
	SourceRow int

	// YearOriginal is the as-reported year. Nil when absent or non-numeric;
	// YearOriginalRaw keeps the offending cell text for error messages.
	YearOriginal    *int
	YearOriginalRaw string

	// DateRangeStr is the free-text date expression, untouched except for
	// surrounding whitespace. DateRangeRaw keeps the original cell value so
	// the date parser can short-circuit on a typed date/time cell.
	DateRangeStr string
	DateRangeRaw any

	Province         string
	Municipality     string
	Commodity        string
	DisasterTypeRaw  string
	DisasterCategory string
	DisasterName     string

	AreaPartiallyDamagedHa float64
	AreaTotallyDamagedHa   float64
	AreaTotalAffectedHa    float64
	FarmersAffected        float64
	VolumeLossMT           float64

	LossesPHPProductionCost float64
	LossesPHPFarmGate       float64
	LossesPHPGrandTotal     float64

	// PSGCCode is filled by the reconciler join when a lookup table is
	// configured. Empty means no match (or no lookup).
	PSGCCode string
}

// ParsedDateRange is the outcome of date parsing. Zero Start/End means the
// text was unparseable; Remark then carries the failure reason ("" for an
// unclassified failure). On success Start <= End does not necessarily hold
// for miskeyed ranges; the validator checks it.
type ParsedDateRange struct {
	Start  time.Time
	End    time.Time
	Remark string
}

// Valid reports whether the range parsed at all.
func (p ParsedDateRange) Valid() bool { return !p.Start.IsZero() }

// ValidatedRecord is a NormalizedRecord plus its parsed dates, the derived
// year, and the joined violation list. ErrorReason == "" means clean.
type ValidatedRecord struct {
	NormalizedRecord
	ParsedDateRange

	// Year is derived from Start's calendar year when the date parsed; it
	// intentionally supersedes YearOriginal as the canonical year. Falls
	// back to YearOriginal (and then 0) for rows headed to quarantine.
	Year int

	// ErrorReason is the semicolon-joined violation list.
	ErrorReason string
}

// Clean reports whether the record passed every validation rule.
func (v ValidatedRecord) Clean() bool { return v.ErrorReason == "" }
