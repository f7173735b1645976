// Package catalog queries the drug catalog. The search pipeline only reads
// from it; index bootstrap and bulk import serve the operator commands.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"pillgenious/pkg/models"
)

// Driver names accepted by Open.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

var (
	// ErrUnknownDriver is returned by Open for an unrecognized driver name.
	ErrUnknownDriver = errors.New("unknown catalog driver")

	// ErrNotConfigured is returned when the selected driver lacks a connection string.
	ErrNotConfigured = errors.New("catalog connection not configured")
)

// Catalog is the read path used by drug search. Both queries return active
// entries only and at most limit of them.
type Catalog interface {
	// TextSearch runs a ranked full-text query, most relevant first and then newest first.
	TextSearch(ctx context.Context, phrase string, limit int) ([]models.Drug, error)

	// PatternSearch returns entries whose name or description matches any of the
	// regular expressions, case-insensitively.
	PatternSearch(ctx context.Context, patterns []string, limit int) ([]models.Drug, error)

	// Name returns the driver name.
	Name() string

	// Close releases the connection pool.
	Close(ctx context.Context) error
}

// Indexer creates the full-text index TextSearch depends on.
type Indexer interface {
	EnsureTextIndex(ctx context.Context) error
}

// Importer bulk-loads catalog entries.
type Importer interface {
	InsertDrugs(ctx context.Context, drugs []models.Drug) (int, error)
}

// Config holds connection settings for every driver.
type Config struct {
	Driver string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	DatabaseURL string
	Table       string
}

// Open connects to the catalog selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Catalog, error) {
	switch cfg.Driver {
	case "", DriverMongo:
		return NewMongoCatalog(ctx, cfg)
	case DriverPostgres:
		return NewPostgresCatalog(ctx, cfg)
	default:
		return nil, fmt.Errorf("catalog: %w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func clampLimit(limit int) int64 {
	if limit <= 0 {
		return 1
	}
	return int64(limit)
}
