// Package storage defines the sink contract for the clean and quarantine
// tables plus a small factory so the binary can carry several backends and
// pick one from config. The pipeline is single-process and single-writer;
// implementations do not need to coordinate concurrent writers.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config carries backend connection settings.
type Config struct {
	// DSN is the backend connection string (file path or URL for sqlite,
	// postgres:// URL for postgres).
	DSN string `json:"dsn"`

	// CleanTable and QuarantineTable name the two destination tables.
	CleanTable      string `json:"clean_table"`
	QuarantineTable string `json:"quarantine_table"`

	// AutoCreateTable creates missing destination tables on open.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Repository is the destination store. Clean rows are appended per file;
// the quarantine batch replaces the previous one wholesale each run.
type Repository interface {
	// EnsureTable creates the table with the given text columns when it
	// does not exist yet.
	EnsureTable(ctx context.Context, table string, columns []string) error

	// Append inserts rows (aligned to columns) transactionally.
	Append(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Replace deletes the table contents and inserts rows in the same
	// transaction, so a failed run cannot leave a half-replaced batch.
	Replace(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	Close()
}

// Factory builds a Repository from Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs a backend factory under kind. Backends register from
// init(); the storage/all package blank-imports them all.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Open builds the repository for kind, or an error listing the registered
// kinds when the kind is unknown.
func Open(ctx context.Context, kind string, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage kind %q (registered: %v)", kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend names, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
