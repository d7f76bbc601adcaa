// Package csv implements a streaming CSV reader for the pipeline's
// delimited inputs: the PSGC lookup table and resubmitted quarantine
// reports. It tolerates real-world exports (UTF-8 BOMs from spreadsheet
// tools, stray whitespace, rows with the wrong width) by soft-skipping bad
// rows and counting them instead of aborting the file.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/MIS-WV-DA-VI/risk-analysis/pkg/records"
)

// Options configures the parser. All fields are optional; zero values get
// sensible defaults.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// ExpectedFields, when > 0, enforces a fixed field count per record.
	// Rows with a different width are skipped and counted.
	ExpectedFields int

	// HeaderMap maps source header names to canonical keys. Headers not in
	// the map are kept as-is (trimmed).
	HeaderMap map[string]string
}

// Parser parses CSV input according to Options. Safe to reuse across
// inputs; not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// skipLogLimit caps per-file skip log lines so a corrupt file cannot flood
// the run log.
const skipLogLimit = 50

// Parse consumes the CSV from r and returns the parsed rows, the headers in
// file order, and the number of skipped rows. The first header row is
// required; the whole file fails when it cannot be read.
func (p *Parser) Parse(r io.Reader) ([]records.Record, []string, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	h, err := cr.Read()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	headers := p.normalizeHeaders(h)

	width := len(headers)
	if p.opt.ExpectedFields > 0 {
		width = p.opt.ExpectedFields
		if len(headers) != width {
			return nil, nil, 0, fmt.Errorf("csv header has %d columns, expected %d", len(headers), width)
		}
	}

	var out []records.Record
	var skipped int
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < skipLogLimit {
				log.Printf("csv: skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}
		if len(row) != width {
			if skipped < skipLogLimit {
				log.Printf("csv: skipping row %d: incorrect number of fields (expected %d, got %d)", line, width, len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[headers[i]] = emptyToNil(val)
		}
		out = append(out, rec)
	}
	return out, headers, skipped, nil
}

// emptyToNil maps "" to nil so absence is explicit downstream.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders trims, strips a UTF-8 BOM from the first cell, and
// applies HeaderMap.
func (p *Parser) normalizeHeaders(h []string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if p.opt.HeaderMap != nil {
			if m, ok := p.opt.HeaderMap[c]; ok && m != "" {
				c = m
			}
		}
		res[i] = c
	}
	return res
}
