// Package reconcile resolves province/municipality naming across
// independently sourced tables to a common join key. The PSGC code is the
// strong key when the lookup table provides it; the uppercased name pair is
// the fallback. A miss is not an error; unmatched rows surface downstream
// as null aggregates.
package reconcile

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/MIS-WV-DA-VI/risk-analysis/internal/normalize"
	csvparser "github.com/MIS-WV-DA-VI/risk-analysis/internal/parser/csv"
)

// LookupColumns is the exact column set of the lookup CSV.
var LookupColumns = []string{"province_name", "municipality_name", "psgc_code"}

// Entry is one (province, municipality) → PSGC code mapping.
type Entry struct {
	Province     string
	Municipality string
	PSGC         string
}

// Lookup maps name pairs to PSGC codes. Keys are uppercased and trimmed; a
// second accent-folded index catches Ñ/enye spelling drift between the GIS
// boundaries and the loss reports.
type Lookup struct {
	exact  map[string]string
	folded map[string]string
}

// Key builds the canonical name-pair join key used when no code is
// available on either side of a join.
func Key(province, municipality string) string {
	return strings.ToUpper(strings.TrimSpace(province)) + "|" + strings.ToUpper(strings.TrimSpace(municipality))
}

// deaccent strips combining marks so PEÑAROL and PENAROL collide.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldKey(key string) string {
	out, _, err := transform.String(deaccent, key)
	if err != nil {
		return key
	}
	return out
}

// NewLookup indexes entries. Duplicate (province, municipality) pairs keep
// the first occurrence; the number removed is returned for logging.
func NewLookup(entries []Entry) (*Lookup, int) {
	l := &Lookup{
		exact:  make(map[string]string, len(entries)),
		folded: make(map[string]string, len(entries)),
	}
	dropped := 0
	for _, e := range entries {
		k := Key(e.Province, e.Municipality)
		if _, seen := l.exact[k]; seen {
			dropped++
			continue
		}
		l.exact[k] = e.PSGC
		fk := foldKey(k)
		if _, seen := l.folded[fk]; !seen {
			l.folded[fk] = e.PSGC
		}
	}
	return l, dropped
}

// Code resolves a name pair to a PSGC code: exact key first, accent-folded
// key second. ok=false means no match on either.
func (l *Lookup) Code(province, municipality string) (string, bool) {
	k := Key(province, municipality)
	if code, ok := l.exact[k]; ok {
		return code, true
	}
	if code, ok := l.folded[foldKey(k)]; ok {
		return code, true
	}
	return "", false
}

// Len reports the number of distinct name pairs indexed.
func (l *Lookup) Len() int { return len(l.exact) }

// LoadLookup reads the lookup CSV (province_name, municipality_name,
// psgc_code), uppercases and trims the names, and de-duplicates first-wins.
func LoadLookup(path string) (*Lookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lookup: %w", err)
	}
	defer f.Close()

	p := csvparser.NewParser(csvparser.Options{TrimSpace: true, ExpectedFields: len(LookupColumns)})
	rows, headers, skipped, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse lookup: %w", err)
	}
	for i, want := range LookupColumns {
		if headers[i] != want {
			return nil, fmt.Errorf("lookup column %d is %q, want %q", i+1, headers[i], want)
		}
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			Province:     normalize.Upper(r["province_name"]),
			Municipality: normalize.Upper(r["municipality_name"]),
			PSGC:         normalize.Text(r["psgc_code"]),
		})
	}
	l, dropped := NewLookup(entries)
	if dropped > 0 {
		log.Printf("reconcile: removed %d duplicate province/municipality entries from lookup", dropped)
	}
	if skipped > 0 {
		log.Printf("reconcile: skipped %d malformed lookup rows", skipped)
	}
	return l, nil
}

// Dedupe returns entries with duplicate (province, municipality) pairs
// removed, first occurrence kept, sorted by province then municipality.
// Used by the lookup builder before writing the CSV.
func Dedupe(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := Key(e.Province, e.Municipality)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Province != out[j].Province {
			return out[i].Province < out[j].Province
		}
		return out[i].Municipality < out[j].Municipality
	})
	return out
}
