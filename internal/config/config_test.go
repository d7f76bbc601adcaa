package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

/*
TestLoad checks decoding plus the defaults: sheet name, header row, job
name, and table names fill in when omitted.
*/
func TestLoad(t *testing.T) {
	p, err := Load(writeConfig(t, `{
		"input": {"inbox_dir": "data/inbox", "processed_dir": "data/processed"},
		"output": {"clean_csv": "out/clean.csv", "error_csv": "out/errors.csv"},
		"storage": {"kind": "sqlite", "dsn": "file:events.db", "auto_create_table": true}
	}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Job != "sanitize" {
		t.Fatalf("Job = %q", p.Job)
	}
	if p.Input.Sheet != "Consolidated 2010 - Present" || p.Input.HeaderRow != 2 {
		t.Fatalf("input defaults = %q, %d", p.Input.Sheet, p.Input.HeaderRow)
	}
	if p.Storage.CleanTable != "disaster_events" || p.Storage.QuarantineTable != "quarantined_disasters" {
		t.Fatalf("table defaults = %q, %q", p.Storage.CleanTable, p.Storage.QuarantineTable)
	}
	if !p.Storage.AutoCreateTable {
		t.Fatal("AutoCreateTable not decoded")
	}
}

/*
TestLoad_Failures: unknown fields and unreadable files are errors, so a
typoed option cannot be silently ignored.
*/
func TestLoad_Failures(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"inptu": {}}`)); err == nil {
		t.Fatal("accepted an unknown field")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("accepted a missing file")
	}
}

/*
TestValidatePipeline walks the static checks: required paths, storage kind
and DSN coupling, and the advisory warnings for a disabled store or lookup.
*/
func TestValidatePipeline(t *testing.T) {
	base := Pipeline{
		Input: Input{
			InboxDir:     "data/inbox",
			ProcessedDir: "data/processed",
			Sheet:        "Consolidated 2010 - Present",
			HeaderRow:    2,
		},
		Output:  Output{CleanCSV: "out/clean.csv", ErrorCSV: "out/errors.csv"},
		Lookup:  Lookup{Path: "psgc_lookup.csv"},
		Storage: Storage{Kind: "sqlite", DSN: "file:events.db"},
	}

	if issues := ValidatePipeline(base); len(issues) != 0 {
		t.Fatalf("valid pipeline flagged: %v", issues)
	}

	cases := []struct {
		name     string
		mutate   func(*Pipeline)
		path     string
		severity IssueSeverity
	}{
		{"missing inbox", func(p *Pipeline) { p.Input.InboxDir = "" }, "input.inbox_dir", SeverityError},
		{"missing sheet", func(p *Pipeline) { p.Input.Sheet = " " }, "input.sheet", SeverityError},
		{"bad header row", func(p *Pipeline) { p.Input.HeaderRow = 0 }, "input.header_row", SeverityError},
		{"missing clean output", func(p *Pipeline) { p.Output.CleanCSV = "" }, "output.clean_csv", SeverityError},
		{"unknown storage kind", func(p *Pipeline) { p.Storage.Kind = "oracle" }, "storage.kind", SeverityError},
		{"storage without dsn", func(p *Pipeline) { p.Storage.DSN = "" }, "storage.dsn", SeverityError},
		{"no storage", func(p *Pipeline) { p.Storage = Storage{} }, "storage.kind", SeverityWarning},
		{"no lookup", func(p *Pipeline) { p.Lookup.Path = "" }, "lookup.path", SeverityWarning},
		{"resubmit without processed dir", func(p *Pipeline) {
			p.Resubmit = Resubmit{InboxDir: "data/resubmit"}
		}, "resubmit.processed_dir", SeverityError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			issues := ValidatePipeline(p)
			for _, is := range issues {
				if is.Path == tc.path && is.Severity == tc.severity {
					return
				}
			}
			t.Fatalf("issues = %v, want %s at %s", issues, tc.severity, tc.path)
		})
	}
}

/*
TestIssue_Error pins the one-line rendering used by the -validate command.
*/
func TestIssue_Error(t *testing.T) {
	is := Issue{Severity: SeverityError, Path: "input.inbox_dir", Message: "inbox directory is required"}
	if got := is.Error(); got != "error at input.inbox_dir: inbox directory is required" {
		t.Fatalf("Error() = %q", got)
	}
}
