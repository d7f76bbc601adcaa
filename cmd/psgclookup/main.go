// Command psgclookup builds the PSGC lookup CSV consumed by the sanitation
// pipeline from a municipal-boundaries GeoJSON export. It extracts the
// province, municipality, and PSGC properties from each feature, uppercases
// and trims the names, drops duplicate name pairs (first occurrence wins),
// and writes the sorted table with a BOM for spreadsheet tools.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/export"
	"github.com/MIS-WV-DA-VI/risk-analysis/internal/reconcile"
)

// featureCollection is the slice of GeoJSON we care about: feature
// properties only, geometry ignored.
type featureCollection struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func main() {
	var (
		geojsonPath string
		outPath     string
		provProp    string
		munProp     string
		psgcProp    string
	)
	flag.StringVar(&geojsonPath, "geojson", "gis_data/WV_Municipalities.geojson", "municipal boundaries GeoJSON path")
	flag.StringVar(&outPath, "out", "psgc_lookup.csv", "output lookup CSV path")
	flag.StringVar(&provProp, "prov-prop", "adm2_en", "feature property holding the province name")
	flag.StringVar(&munProp, "mun-prop", "adm3_en", "feature property holding the municipality name")
	flag.StringVar(&psgcProp, "psgc-prop", "adm3_psgc", "feature property holding the municipality PSGC code")
	flag.Parse()

	if err := run(geojsonPath, outPath, provProp, munProp, psgcProp); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

func run(geojsonPath, outPath, provProp, munProp, psgcProp string) error {
	data, err := os.ReadFile(geojsonPath)
	if err != nil {
		return fmt.Errorf("read geojson: %w", err)
	}
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("decode geojson: %w", err)
	}
	log.Printf("loaded %d features from %s", len(fc.Features), filepath.Base(geojsonPath))

	entries := make([]reconcile.Entry, 0, len(fc.Features))
	var missingProps int
	for _, f := range fc.Features {
		prov := propString(f.Properties, provProp)
		mun := propString(f.Properties, munProp)
		psgc := propString(f.Properties, psgcProp)
		if prov == "" || mun == "" || psgc == "" {
			missingProps++
			continue
		}
		entries = append(entries, reconcile.Entry{
			Province:     strings.ToUpper(prov),
			Municipality: strings.ToUpper(mun),
			PSGC:         psgc,
		})
	}
	if len(entries) == 0 {
		return fmt.Errorf("no features carried the %q/%q/%q properties; check the -*-prop flags", provProp, munProp, psgcProp)
	}
	if missingProps > 0 {
		log.Printf("skipped %d features missing lookup properties", missingProps)
	}

	deduped := reconcile.Dedupe(entries)
	if removed := len(entries) - len(deduped); removed > 0 {
		log.Printf("removed %d duplicate province/municipality entries", removed)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	rows := make([][]string, len(deduped))
	for i, e := range deduped {
		rows[i] = []string{e.Province, e.Municipality, e.PSGC}
	}
	if err := export.WriteTable(f, reconcile.LookupColumns, rows); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("wrote %d lookup entries to %s", len(deduped), outPath)
	return nil
}

func propString(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", v))
	}
	return ""
}
