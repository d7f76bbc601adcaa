// Package config defines the JSON-serializable configuration for the
// sanitation pipeline. It is deliberately small and dependency-free:
// decoding is plain encoding/json, and the recognized options are enumerated
// as struct fields rather than loose maps, so a pipeline file documents
// itself.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is the top-level object decoded from a pipeline JSON file.
type Pipeline struct {
	// Job names the run for logs and metrics grouping.
	Job string `json:"job"`

	Input    Input    `json:"input"`
	Lookup   Lookup   `json:"lookup"`
	Output   Output   `json:"output"`
	Resubmit Resubmit `json:"resubmit"`
	Storage  Storage  `json:"storage"`
}

// Input locates and describes the spreadsheet inbox.
type Input struct {
	// InboxDir is scanned for *.xlsx files; each is processed to completion
	// before the next.
	InboxDir string `json:"inbox_dir"`

	// ProcessedDir receives files that were carried all the way through a
	// run. Files that fail structurally stay in the inbox.
	ProcessedDir string `json:"processed_dir"`

	// Sheet is the worksheet name holding the consolidated data.
	Sheet string `json:"sheet"`

	// HeaderRow is the 1-based sheet row of the column headers. The
	// consolidated workbooks put a title row above them, so this is 2.
	HeaderRow int `json:"header_row"`
}

// Lookup configures the optional PSGC lookup join.
type Lookup struct {
	// Path is the lookup CSV (province_name, municipality_name,
	// psgc_code). Empty disables the PSGC join and its validation rule.
	Path string `json:"path"`
}

// Output names the delimited report files.
type Output struct {
	CleanCSV string `json:"clean_csv"`
	ErrorCSV string `json:"error_csv"`
}

// Resubmit locates the corrected-quarantine inbox for the resubmission run.
type Resubmit struct {
	InboxDir     string `json:"inbox_dir"`
	ProcessedDir string `json:"processed_dir"`
}

// Storage selects and configures the destination store.
type Storage struct {
	// Kind selects the backend: "sqlite" or "postgres". Empty disables the
	// store; the run then only writes the delimited reports.
	Kind string `json:"kind"`

	DSN             string `json:"dsn"`
	CleanTable      string `json:"clean_table"`
	QuarantineTable string `json:"quarantine_table"`
	AutoCreateTable bool   `json:"auto_create_table"`

	// Overwrite replaces the clean table instead of appending. Meant for
	// initial loads and resets only.
	Overwrite bool `json:"overwrite"`
}

// Load reads and decodes a pipeline file and applies defaults.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config: %w", err)
	}
	p.applyDefaults()
	return p, nil
}

func (p *Pipeline) applyDefaults() {
	if p.Job == "" {
		p.Job = "sanitize"
	}
	if p.Input.Sheet == "" {
		p.Input.Sheet = "Consolidated 2010 - Present"
	}
	if p.Input.HeaderRow == 0 {
		p.Input.HeaderRow = 2
	}
	if p.Storage.CleanTable == "" {
		p.Storage.CleanTable = "disaster_events"
	}
	if p.Storage.QuarantineTable == "" {
		p.Storage.QuarantineTable = "quarantined_disasters"
	}
}
