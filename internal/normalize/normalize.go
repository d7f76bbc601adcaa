// Package normalize turns raw spreadsheet rows into typed records: header
// renaming to the canonical schema, numeric and string coercion, and the
// commodity code cleanup.
//
// Coercion never fails. Unparseable numeric cells become 0 and missing
// strings become ""; the validator decides what is actually an error (a
// zero grand total is, a zero partial area is not).
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/schema"
)

// HeaderMap maps the consolidated workbook's column headers to canonical
// field names. Headers are trimmed before lookup; canonical names map to
// themselves so resubmitted quarantine rows pass through unchanged.
var HeaderMap = map[string]string{
	"YEAR (DATE OF OCCURENCE)":   "year",
	"ACTUAL DATE OF OCCURENCE":   "date_range_str",
	"PROVINCE AFFECTED":          "province",
	"MUNICIPALITY AFFECTED":      "municipality",
	"COMMODITY":                  "commodity",
	"DISASTER TYPE":              "disaster_type_raw",
	"HYDROMETEOROLOGICAL EVENTS / GENERAL DISASTER EVENTS": "disaster_category",
	"NAME OF DISASTER": "disaster_name",
	"Totally Damaged (AREA AFFECTED (HA.) / MORTALITY HEADS / NO. OF UNITS AFFECTED)":   "area_totally_damaged_ha",
	"Partially Damaged (AREA AFFECTED (HA.) / MORTALITY HEADS / NO. OF UNITS AFFECTED)": "area_partially_damaged_ha",
	"TOTAL (AREA AFFECTED (HA.) / MORTALITY HEADS / NO. OF UNITS AFFECTED)":             "area_total_affected_ha",
	"NUMBER OF FARMERS AFFECTED":                            "farmers_affected",
	"GRAND TOTAL":                                           "losses_php_grand_total",
	"Total Value (Based on Cost of Production / Inputs)":    "losses_php_production_cost",
	"Total Value - Based on Farm Gate Price":                "losses_php_farm_gate",
	"Volume (MT) - Based on Farm Gate Price":                "volume_loss_mt",
}

// RequiredColumns must all be present (post-mapping) for a file to be
// processed at all; a file missing any of them is rejected wholesale.
var RequiredColumns = []string{
	"year",
	"date_range_str",
	"province",
	"municipality",
	"losses_php_grand_total",
}

// canonical is the set of canonical field names, for passthrough lookup.
var canonical = func() map[string]bool {
	m := make(map[string]bool, len(HeaderMap))
	for _, v := range HeaderMap {
		m[v] = true
	}
	return m
}()

// Canonical resolves a raw header to its canonical field name. The second
// return is false for headers outside the schema (e.g. unnamed filler
// columns), which callers drop.
func Canonical(header string) (string, bool) {
	h := strings.TrimSpace(header)
	if c, ok := HeaderMap[h]; ok {
		return c, true
	}
	if canonical[h] {
		return h, true
	}
	return "", false
}

var commodityCode = regexp.MustCompile(`^\d+\s*-\s*`)

// Record normalizes one raw row. Headers outside the schema are ignored.
func Record(raw schema.RawRecord) schema.NormalizedRecord {
	cells := map[string]any{}
	for k, v := range raw.Cells {
		if c, ok := Canonical(k); ok {
			cells[c] = v
		}
	}

	n := schema.NormalizedRecord{SourceRow: raw.SourceRow}

	n.YearOriginalRaw = Text(cells["year"])
	if y, ok := Year(cells["year"]); ok {
		n.YearOriginal = &y
	}
	n.DateRangeStr = Text(cells["date_range_str"])
	n.DateRangeRaw = cells["date_range_str"]

	n.Province = Upper(cells["province"])
	n.Municipality = Upper(cells["municipality"])
	n.Commodity = Commodity(cells["commodity"])
	n.DisasterTypeRaw = Upper(cells["disaster_type_raw"])
	n.DisasterCategory = Upper(cells["disaster_category"])
	n.DisasterName = Upper(cells["disaster_name"])

	n.AreaPartiallyDamagedHa = Number(cells["area_partially_damaged_ha"])
	n.AreaTotallyDamagedHa = Number(cells["area_totally_damaged_ha"])
	n.AreaTotalAffectedHa = Number(cells["area_total_affected_ha"])
	n.FarmersAffected = Number(cells["farmers_affected"])
	n.VolumeLossMT = Number(cells["volume_loss_mt"])
	n.LossesPHPProductionCost = Number(cells["losses_php_production_cost"])
	n.LossesPHPFarmGate = Number(cells["losses_php_farm_gate"])
	n.LossesPHPGrandTotal = Number(cells["losses_php_grand_total"])

	return n
}

// Number coerces a cell to a non-negative-by-convention decimal. Thousands
// separators are stripped, a lone "-" placeholder reads as 0, and anything
// else unparseable also reads as 0. This silent default is deliberate: only
// the grand-total-zero rule treats a 0 as suspicious.
func Number(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" || s == "-" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Year coerces a cell to an integer year. Returns false when the cell is
// empty or not numeric; the raw text is kept separately for the violation
// message.
func Year(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	case time.Time:
		return t.Year(), true
	}
	return 0, false
}

// Text returns the cell as a trimmed string without case folding.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case time.Time:
		return t.Format("2006-01-02")
	}
	return ""
}

// Upper returns the cell uppercased and trimmed; missing cells become "".
func Upper(v any) string {
	return strings.ToUpper(Text(v))
}

// Commodity uppercases the cell and strips a leading "<digits> - " code
// prefix left over from the commodity coding sheets.
func Commodity(v any) string {
	return strings.TrimSpace(commodityCode.ReplaceAllString(Upper(v), ""))
}
