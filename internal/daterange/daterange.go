// Package daterange parses the free-text "actual date of occurrence"
// expressions found in the consolidated disaster workbooks into a concrete
// (start, end) date pair plus a remark describing how the text matched.
//
// Parsing runs an ordered cascade of matchers; the first one whose shape
// matches wins, even if it then fails (a matched-but-invalid expression does
// not fall through to later patterns, mirroring how the source data was
// curated). A reported-year hint, when present, bounds the result: any
// parsed year more than one calendar year away from the hint fails with a
// "differs significantly" reason rather than silently accepting a miskeyed
// date.
package daterange

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
)

// state tags the outcome of a single cascade attempt.
type state int

const (
	noMatch state = iota // shape did not match; try the next pattern
	matched              // parsed successfully
	failed               // shape matched but the value is invalid
)

// result is the tagged attempt outcome. reason is only meaningful for
// failed; an empty reason marks an unclassified failure and the caller
// falls back to a generic "unparseable date" message.
type result struct {
	state  state
	rng    schema.ParsedDateRange
	reason string
}

type matcher func(s string, hint *int) result

// cascade is evaluated in priority order. The typed-date short-circuit and
// the generic split fallback sit outside the list (before and after it).
var cascade = []matcher{
	matchDayOrDayRange,
	matchMonthToMonth,
	matchMonthOnly,
	matchISO,
}

// Parse turns a raw date cell plus the reported-year hint into a
// ParsedDateRange. On failure it returns ok=false and a reason string;
// reason=="" signals an unclassified parse failure.
func Parse(value any, hint *int) (schema.ParsedDateRange, bool, string) {
	// Typed date/time cells need no text parsing at all.
	if t, ok := value.(time.Time); ok {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if r := checkHint(d.Year(), hint); r != "" {
			return schema.ParsedDateRange{}, false, r
		}
		return schema.ParsedDateRange{
			Start:  d,
			End:    d,
			Remark: "Parsed from a native spreadsheet date format.",
		}, true, ""
	}

	s := strings.TrimSpace(toString(value))
	if s == "" {
		return schema.ParsedDateRange{}, false, ""
	}

	for _, m := range cascade {
		switch res := m(s, hint); res.state {
		case matched:
			return res.rng, true, ""
		case failed:
			return schema.ParsedDateRange{}, false, res.reason
		}
	}

	res := matchGeneric(s, hint)
	if res.state == matched {
		return res.rng, true, ""
	}
	return schema.ParsedDateRange{}, false, res.reason
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return fmt.Sprint(v)
}

// checkHint enforces the ±1-year sanity bound. Returns "" when the year is
// acceptable (or no hint is available).
func checkHint(year int, hint *int) string {
	if hint == nil {
		return ""
	}
	if d := year - *hint; d > 1 || d < -1 {
		return fmt.Sprintf("Year in date string (%d) differs significantly from Year column (%d).", year, *hint)
	}
	return ""
}

func checkHintSpan(startYear, endYear int, hint *int) string {
	if hint == nil {
		return ""
	}
	if d := startYear - *hint; d > 1 || d < -1 {
		return fmt.Sprintf("Year in date string (%d-%d) differs significantly from Year column (%d).", startYear, endYear, *hint)
	}
	if d := endYear - *hint; d > 1 || d < -1 {
		return fmt.Sprintf("Year in date string (%d-%d) differs significantly from Year column (%d).", startYear, endYear, *hint)
	}
	return ""
}

// parseMonth resolves a full English month name, case-insensitively.
func parseMonth(s string) (time.Month, bool) {
	t, err := time.Parse("January", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return t.Month(), true
}

// daysIn returns the number of days in a month, leap-year aware.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func date(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 || day > daysIn(year, month) {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

var reDayOrDayRange = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{1,2})(?:\s*-\s*(\d{1,2}))?,\s*(\d{4})$`)

// matchDayOrDayRange handles "Month D, YYYY" and "Month D-D, YYYY" (a day
// range within one month).
func matchDayOrDayRange(s string, hint *int) result {
	m := reDayOrDayRange.FindStringSubmatch(s)
	if m == nil {
		return result{state: noMatch}
	}
	month, ok := parseMonth(m[1])
	if !ok {
		return result{state: failed}
	}
	year, _ := strconv.Atoi(m[4])
	startDay, _ := strconv.Atoi(m[2])
	start, ok := date(year, month, startDay)
	if !ok {
		return result{state: failed}
	}

	end := start
	remark := "Parsed as a single day event."
	if m[3] != "" {
		endDay, _ := strconv.Atoi(m[3])
		end, ok = date(year, month, endDay)
		if !ok {
			return result{state: failed}
		}
		remark = "Parsed from 'Month Day-Day, Year' format."
	}
	if r := checkHint(year, hint); r != "" {
		return result{state: failed, reason: r}
	}
	return result{state: matched, rng: schema.ParsedDateRange{Start: start, End: end, Remark: remark}}
}

var reMonthToMonth = regexp.MustCompile(`^([A-Za-z]+)\s*-\s*([A-Za-z]+)\s+(\d{4})`)

// matchMonthToMonth handles "Month-Month YYYY": first of the first month
// through the last calendar day of the second month.
func matchMonthToMonth(s string, hint *int) result {
	m := reMonthToMonth.FindStringSubmatch(s)
	if m == nil {
		return result{state: noMatch}
	}
	startMonth, ok := parseMonth(m[1])
	if !ok {
		return result{state: failed}
	}
	endMonth, ok := parseMonth(m[2])
	if !ok {
		return result{state: failed}
	}
	year, _ := strconv.Atoi(m[3])
	if r := checkHint(year, hint); r != "" {
		return result{state: failed, reason: r}
	}
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, endMonth, daysIn(year, endMonth), 0, 0, 0, 0, time.UTC)
	return result{state: matched, rng: schema.ParsedDateRange{
		Start:  start,
		End:    end,
		Remark: "Parsed from month-only range; assumed full month coverage.",
	}}
}

var (
	reMonthOnly = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{4})$`)
	reToWord    = regexp.MustCompile(`(?i)\bto\b`)
)

// matchMonthOnly handles "Month YYYY" with no range marker: the whole month.
func matchMonthOnly(s string, hint *int) result {
	if strings.Contains(s, "-") || reToWord.MatchString(s) {
		return result{state: noMatch}
	}
	m := reMonthOnly.FindStringSubmatch(s)
	if m == nil {
		return result{state: noMatch}
	}
	month, ok := parseMonth(m[1])
	if !ok {
		return result{state: failed}
	}
	year, _ := strconv.Atoi(m[2])
	if r := checkHint(year, hint); r != "" {
		return result{state: failed, reason: r}
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, month, daysIn(year, month), 0, 0, 0, 0, time.UTC)
	return result{state: matched, rng: schema.ParsedDateRange{
		Start:  start,
		End:    end,
		Remark: "Parsed from month-only value; assumed full month.",
	}}
}

var reISO = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:\s+\d{2}:\d{2}:\d{2})?$`)

// matchISO handles strict "YYYY-MM-DD" with an optional time-of-day suffix.
func matchISO(s string, hint *int) result {
	m := reISO.FindStringSubmatch(s)
	if m == nil {
		return result{state: noMatch}
	}
	d, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return result{state: failed}
	}
	if r := checkHint(d.Year(), hint); r != "" {
		return result{state: failed, reason: r}
	}
	return result{state: matched, rng: schema.ParsedDateRange{
		Start:  d,
		End:    d,
		Remark: "Parsed from a standard timestamp format.",
	}}
}

var (
	reRangeSplit = regexp.MustCompile(`(?i)\s*-\s*|\s+to\s+`)
	reYear       = regexp.MustCompile(`(\d{4})`)
	reYearStrip  = regexp.MustCompile(`\s*,?\s*\d{4}`)
	reMonthDay   = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{1,2})$`)
	reDigits     = regexp.MustCompile(`^\d+$`)
)

// phrase is one side of a split range expression with its year resolved.
type phrase struct {
	text string // month (and maybe day), year stripped
	year int
}

func splitPhrase(s string, fallbackYear int, haveYear bool) (phrase, bool) {
	p := phrase{year: fallbackYear}
	if m := reYear.FindStringSubmatch(s); m != nil {
		p.year, _ = strconv.Atoi(m[1])
	} else if !haveYear {
		return p, false
	}
	p.text = strings.TrimSpace(reYearStrip.ReplaceAllString(s, ""))
	return p, true
}

// matchGeneric is the last-resort parser: split on "-" or the word "to" into
// a start phrase and an end phrase. Either phrase may omit the day (assume
// first/last of month) or the year (inherit from the other phrase or the
// hint); a pure-integer end phrase continues the start phrase's month.
func matchGeneric(s string, hint *int) result {
	parts := reRangeSplit.Split(s, -1)
	startStr := parts[0]
	endStr := parts[len(parts)-1]

	hintYear := 0
	haveHint := hint != nil
	if haveHint {
		hintYear = *hint
	}

	start, ok := splitPhrase(startStr, hintYear, haveHint)
	if !ok {
		return result{state: failed, reason: "No year available for start date"}
	}

	var remarks []string
	var startDate time.Time
	startHasDay := false
	if m := reMonthDay.FindStringSubmatch(start.text); m != nil {
		month, okM := parseMonth(m[1])
		if !okM {
			return result{state: failed, reason: "Invalid start month name"}
		}
		day, _ := strconv.Atoi(m[2])
		d, okD := date(start.year, month, day)
		if !okD {
			return result{state: failed}
		}
		startDate = d
		startHasDay = true
	} else if month, okM := parseMonth(start.text); okM {
		startDate = time.Date(start.year, month, 1, 0, 0, 0, 0, time.UTC)
		remarks = append(remarks, "Start date assumed as 1st of month.")
	} else {
		return result{state: failed, reason: "Invalid start month name"}
	}

	end, _ := splitPhrase(endStr, start.year, true)

	var endDate time.Time
	switch {
	case len(parts) == 1:
		endDate = startDate
		// A bare month already carries the assumed-1st remark; adding the
		// single-day remark on top would be noise.
		if startHasDay {
			remarks = append(remarks, "Parsed as a single day event.")
		}

	case reDigits.MatchString(end.text):
		// "March 15-17" style: the end phrase is a day of the start month.
		if !startHasDay {
			return result{state: failed, reason: "Ambiguous range (Month to Day)"}
		}
		day, _ := strconv.Atoi(end.text)
		d, okD := date(startDate.Year(), startDate.Month(), day)
		if !okD {
			return result{state: failed}
		}
		endDate = d
		remarks = append(remarks, "Parsed as a date range within the same month.")

	default:
		if m := reMonthDay.FindStringSubmatch(end.text); m != nil {
			month, okM := parseMonth(m[1])
			if !okM {
				return result{state: failed, reason: "Invalid end month name"}
			}
			day, _ := strconv.Atoi(m[2])
			d, okD := date(end.year, month, day)
			if !okD {
				return result{state: failed}
			}
			endDate = d
		} else if month, okM := parseMonth(end.text); okM {
			endDate = time.Date(end.year, month, daysIn(end.year, month), 0, 0, 0, 0, time.UTC)
			remarks = append(remarks, "End date assumed as last day of month.")
		} else {
			return result{state: failed, reason: "Invalid end month name"}
		}
	}

	if r := checkHintSpan(startDate.Year(), endDate.Year(), hint); r != "" {
		return result{state: failed, reason: r}
	}
	if len(remarks) == 0 {
		remarks = append(remarks, "Parsed as a standard date range.")
	}
	return result{state: matched, rng: schema.ParsedDateRange{
		Start:  startDate,
		End:    endDate,
		Remark: strings.Join(remarks, " "),
	}}
}
