package schema

import (
	"strconv"
	"time"
)

// CleanColumns is the fixed projection emitted for validated rows. The order
// is part of the output contract; downstream joins and the quarantine report
// both derive from it.
var CleanColumns = []string{
	"year",
	"event_date_start",
	"event_date_end",
	"province",
	"municipality",
	"commodity",
	"disaster_type_raw",
	"disaster_category",
	"disaster_name",
	"area_partially_damaged_ha",
	"area_totally_damaged_ha",
	"area_total_affected_ha",
	"farmers_affected",
	"volume_loss_mt",
	"losses_php_production_cost",
	"losses_php_farm_gate",
	"losses_php_grand_total",
	"sanitation_remarks",
}

// PSGCColumn is appended to the clean projection when a lookup table is
// configured for the run.
const PSGCColumn = "psgc_code"

// ErrorColumns extends a clean projection with traceability columns. Raw
// headers outside the clean projection are excluded on purpose so the error
// report stays schema-stable across source files.
func ErrorColumns(clean []string) []string {
	out := make([]string, 0, len(clean)+2)
	out = append(out, clean...)
	return append(out, "source_row_number", "error_reason")
}

// CleanRow projects a record onto columns. Dates render as YYYY-MM-DD,
// numbers as plain decimals, year as integer-or-empty.
func (v ValidatedRecord) CleanRow(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = v.field(col)
	}
	return out
}

// ErrorRow is CleanRow plus source row number and the joined reasons.
func (v ValidatedRecord) ErrorRow(columns []string) []string {
	return v.CleanRow(columns)
}

func (v ValidatedRecord) field(col string) string {
	switch col {
	case "year":
		if v.Year == 0 {
			return ""
		}
		return strconv.Itoa(v.Year)
	case "event_date_start":
		return formatDate(v.Start)
	case "event_date_end":
		return formatDate(v.End)
	case "province":
		return v.Province
	case "municipality":
		return v.Municipality
	case "commodity":
		return v.Commodity
	case "disaster_type_raw":
		return v.DisasterTypeRaw
	case "disaster_category":
		return v.DisasterCategory
	case "disaster_name":
		return v.DisasterName
	case "area_partially_damaged_ha":
		return formatNumber(v.AreaPartiallyDamagedHa)
	case "area_totally_damaged_ha":
		return formatNumber(v.AreaTotallyDamagedHa)
	case "area_total_affected_ha":
		return formatNumber(v.AreaTotalAffectedHa)
	case "farmers_affected":
		return formatNumber(v.FarmersAffected)
	case "volume_loss_mt":
		return formatNumber(v.VolumeLossMT)
	case "losses_php_production_cost":
		return formatNumber(v.LossesPHPProductionCost)
	case "losses_php_farm_gate":
		return formatNumber(v.LossesPHPFarmGate)
	case "losses_php_grand_total":
		return formatNumber(v.LossesPHPGrandTotal)
	case "sanitation_remarks":
		return v.Remark
	case PSGCColumn:
		return v.PSGCCode
	case "source_row_number":
		if v.SourceRow == 0 {
			return ""
		}
		return strconv.Itoa(v.SourceRow)
	case "error_reason":
		return v.ErrorReason
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
