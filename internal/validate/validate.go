// Package validate applies the row-level rule set to normalized records.
// Every violated rule is collected: the quarantine report shows an operator
// everything wrong with a row, not just the first problem found.
package validate

import (
	"fmt"
	"strings"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
)

// Rules configures the optional checks. LookupConfigured enables the PSGC
// presence rule; it is off when no lookup table was supplied for the run.
type Rules struct {
	LookupConfigured bool
}

// Violations evaluates every rule against one record and returns the list of
// violation descriptions. It is a pure function: no side effects, identical
// output for identical input, and the rules are independent of one another.
func (ru Rules) Violations(v schema.ValidatedRecord) []string {
	var reasons []string

	provinceMissing := strings.TrimSpace(v.Province) == ""
	municipalityMissing := strings.TrimSpace(v.Municipality) == ""
	if provinceMissing {
		reasons = append(reasons, "Missing essential field: province.")
	}
	if municipalityMissing {
		reasons = append(reasons, "Missing essential field: municipality.")
	}

	if v.YearOriginal == nil {
		reasons = append(reasons, fmt.Sprintf("Year is not a valid number: '%s'", v.YearOriginalRaw))
	}

	if !v.ParsedDateRange.Valid() {
		msg := fmt.Sprintf("Unparseable date: '%s'", v.DateRangeStr)
		if r := v.Remark; r != "" && isParseFailureRemark(r) {
			msg += fmt.Sprintf(" (%s)", r)
		}
		reasons = append(reasons, msg)
	}

	if v.LossesPHPGrandTotal == 0 {
		reasons = append(reasons, "Missing or zero Grand Total for PHP loss.")
	}

	// Only flag a PSGC miss when the names themselves were usable; a row
	// already flagged for a missing province or municipality would just get
	// duplicate noise.
	if ru.LookupConfigured && v.PSGCCode == "" && !provinceMissing && !municipalityMissing {
		reasons = append(reasons, fmt.Sprintf("No PSGC code found for %s / %s.", v.Province, v.Municipality))
	}

	if v.ParsedDateRange.Valid() && v.Start.After(v.End) {
		reasons = append(reasons, fmt.Sprintf(
			"Date range invalid: Start date (%s) is after end date (%s).",
			v.Start.Format("2006-01-02"), v.End.Format("2006-01-02")))
	}

	partial, totally, total := v.AreaPartiallyDamagedHa, v.AreaTotallyDamagedHa, v.AreaTotalAffectedHa
	if (partial > 0 || totally > 0) && total > 0 {
		if diff := partial + totally - total; diff >= 0.01 || diff <= -0.01 {
			reasons = append(reasons, fmt.Sprintf(
				"Area inconsistency: Partial(%g) + Totally(%g) != Total(%g).",
				partial, totally, total))
		}
	}

	return reasons
}

// isParseFailureRemark reports whether a date-parser remark is a specific
// classified failure worth echoing into the violation message.
func isParseFailureRemark(r string) bool {
	return strings.Contains(r, "Invalid") ||
		strings.Contains(r, "Ambiguous") ||
		strings.Contains(r, "differs significantly") ||
		strings.Contains(r, "No year available")
}

// Join renders a violation list as the canonical semicolon-joined
// error_reason string. An empty list joins to "" (clean).
func Join(reasons []string) string {
	return strings.Join(reasons, "; ")
}
