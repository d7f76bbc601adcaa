package config

import (
	"fmt"
	"strings"
)

// IssueSeverity classifies a configuration finding.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path is a dotted path into the
// config (e.g. "input.inbox_dir").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements error so an Issue can stand alone where one is expected.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline statically checks a Pipeline and returns all findings.
// Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	add := func(sev IssueSeverity, path, msg string) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: msg})
	}

	if strings.TrimSpace(p.Input.InboxDir) == "" {
		add(SeverityError, "input.inbox_dir", "inbox directory is required")
	}
	if strings.TrimSpace(p.Input.ProcessedDir) == "" {
		add(SeverityError, "input.processed_dir", "processed directory is required")
	}
	if strings.TrimSpace(p.Input.Sheet) == "" {
		add(SeverityError, "input.sheet", "sheet name is required")
	}
	if p.Input.HeaderRow < 1 {
		add(SeverityError, "input.header_row", "header row must be >= 1")
	}

	if strings.TrimSpace(p.Output.CleanCSV) == "" {
		add(SeverityError, "output.clean_csv", "clean output path is required")
	}
	if strings.TrimSpace(p.Output.ErrorCSV) == "" {
		add(SeverityError, "output.error_csv", "error output path is required")
	}

	switch p.Storage.Kind {
	case "":
		add(SeverityWarning, "storage.kind", "no storage backend configured; only delimited reports will be written")
	case "sqlite", "postgres":
		if strings.TrimSpace(p.Storage.DSN) == "" {
			add(SeverityError, "storage.dsn", "dsn is required when a storage backend is configured")
		}
	default:
		add(SeverityError, "storage.kind", fmt.Sprintf("unknown storage kind %q", p.Storage.Kind))
	}

	if p.Lookup.Path == "" {
		add(SeverityWarning, "lookup.path", "no PSGC lookup configured; the PSGC presence rule is disabled")
	}

	if p.Resubmit.InboxDir != "" && strings.TrimSpace(p.Resubmit.ProcessedDir) == "" {
		add(SeverityError, "resubmit.processed_dir", "processed directory is required when a resubmit inbox is configured")
	}

	return issues
}
