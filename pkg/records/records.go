// Package records defines the loose row representation shared by the
// spreadsheet and CSV parsers. Parsed rows stay in this map form only until
// header mapping produces a typed schema.NormalizedRecord.
package records

// Record is one parsed row keyed by header name. Values are untyped: the
// parsers emit strings (or nil for empty cells) and leave coercion to the
// normalizer.
type Record map[string]any
