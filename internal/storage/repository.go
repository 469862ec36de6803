// Package storage persists result tables into SQL databases.
//
// Backends register themselves by kind from an init function; import
// kiesraad/internal/storage/all to link every backend into a binary.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	// Kind is a registered backend kind ("sqlite", "postgres", "mssql").
	Kind string
	// DSN is passed to the backend verbatim.
	DSN string
}

// Repository is the backend-agnostic surface the exporter needs.
type Repository interface {
	// EnsureTable creates the table if it does not exist yet. Existing tables
	// are left untouched.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows appends rows to table. Every row has one value per column;
	// nil is stored as NULL. Backends split the rows into statements that fit
	// their parameter limits.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Close releases connections. Call once.
	Close()
}

// Factory opens a repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// It panics on an empty kind, a nil factory or a duplicate kind, so wiring
// mistakes surface at startup.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a repository with the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds, sorted.
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
