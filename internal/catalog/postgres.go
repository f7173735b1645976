package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"pillgenious/internal/logger"
	"pillgenious/pkg/models"
)

// searchVector is the document the full-text index and the query share.
const searchVector = `to_tsvector('english', name || ' ' || coalesce(description, ''))`

const drugColumns = `id, name, generic_name, description, manufacturer, category, price, stock,
	requires_prescription, is_active, created_at, updated_at`

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresCatalog reads drugs from a PostgreSQL table using tsvector ranking and ~* matching.
type PostgresCatalog struct {
	db    *sql.DB
	table string
	log   zerolog.Logger
}

// NewPostgresCatalog opens a pooled connection and verifies it with a ping.
func NewPostgresCatalog(ctx context.Context, cfg Config) (*PostgresCatalog, error) {
	const op = "NewPostgresCatalog"

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%s: %w: DATABASE_URL is empty", op, ErrNotConfigured)
	}
	table, err := quoteTable(cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return newPostgresCatalog(db, table), nil
}

func newPostgresCatalog(db *sql.DB, table string) *PostgresCatalog {
	return &PostgresCatalog{
		db:    db,
		table: table,
		log:   logger.WithComponent("catalog.postgres"),
	}
}

// quoteTable validates a table name and returns it quoted for SQL.
func quoteTable(name string) (string, error) {
	if name == "" {
		name = "drugs"
	}
	if !tableName.MatchString(name) {
		return "", fmt.Errorf("invalid catalog table name %q", name)
	}
	return pq.QuoteIdentifier(name), nil
}

// Name returns the driver name.
func (p *PostgresCatalog) Name() string {
	return DriverPostgres
}

func (p *PostgresCatalog) textSearchQuery() string {
	return fmt.Sprintf(`SELECT %s,
	ts_rank(%s, plainto_tsquery('english', $1)) AS score
FROM %s
WHERE is_active AND %s @@ plainto_tsquery('english', $1)
ORDER BY score DESC, created_at DESC
LIMIT $2`, drugColumns, searchVector, p.table, searchVector)
}

func (p *PostgresCatalog) patternSearchQuery() string {
	return fmt.Sprintf(`SELECT %s,
	0::float8 AS score
FROM %s
WHERE is_active AND (name ~* ANY($1) OR coalesce(description, '') ~* ANY($1))
ORDER BY created_at DESC
LIMIT $2`, drugColumns, p.table)
}

// TextSearch runs a plainto_tsquery match ranked by ts_rank, then newest first.
func (p *PostgresCatalog) TextSearch(ctx context.Context, phrase string, limit int) ([]models.Drug, error) {
	const op = "PostgresCatalog.TextSearch"

	drugs, err := p.query(ctx, p.textSearchQuery(), phrase, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return drugs, nil
}

// PatternSearch matches any pattern against name or description.
func (p *PostgresCatalog) PatternSearch(ctx context.Context, patterns []string, limit int) ([]models.Drug, error) {
	const op = "PostgresCatalog.PatternSearch"

	if len(patterns) == 0 {
		return []models.Drug{}, nil
	}

	drugs, err := p.query(ctx, p.patternSearchQuery(), pq.Array(patterns), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return drugs, nil
}

func (p *PostgresCatalog) query(ctx context.Context, query string, args ...interface{}) ([]models.Drug, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	drugs := []models.Drug{}
	for rows.Next() {
		drug, err := scanDrug(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		drugs = append(drugs, drug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return drugs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDrug(row rowScanner) (models.Drug, error) {
	var drug models.Drug
	var genericName, description, manufacturer, category sql.NullString
	var price sql.NullFloat64
	var stock sql.NullInt64

	err := row.Scan(
		&drug.ID, &drug.Name, &genericName, &description, &manufacturer, &category,
		&price, &stock, &drug.RequiresPrescription, &drug.IsActive,
		&drug.CreatedAt, &drug.UpdatedAt, &drug.Score,
	)
	if err != nil {
		return models.Drug{}, err
	}
	drug.GenericName = genericName.String
	drug.Description = description.String
	drug.Manufacturer = manufacturer.String
	drug.Category = category.String
	drug.Price = price.Float64
	drug.Stock = int(stock.Int64)
	return drug, nil
}

func (p *PostgresCatalog) schemaStatements() []string {
	index := pq.QuoteIdentifier(indexBaseName(p.table) + "_search_idx")
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	generic_name TEXT,
	description TEXT,
	manufacturer TEXT,
	category TEXT,
	price NUMERIC(12,2) NOT NULL DEFAULT 0,
	stock INTEGER NOT NULL DEFAULT 0,
	requires_prescription BOOLEAN NOT NULL DEFAULT FALSE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, p.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (%s)`, index, p.table, searchVector),
	}
}

// indexBaseName strips the identifier quotes added by pq.QuoteIdentifier.
func indexBaseName(quoted string) string {
	if len(quoted) >= 2 && quoted[0] == '"' && quoted[len(quoted)-1] == '"' {
		return quoted[1 : len(quoted)-1]
	}
	return quoted
}

// EnsureTextIndex creates the catalog table when missing and the GIN index over the search vector.
func (p *PostgresCatalog) EnsureTextIndex(ctx context.Context) error {
	const op = "PostgresCatalog.EnsureTextIndex"

	for _, stmt := range p.schemaStatements() {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	p.log.Info().Str("table", p.table).Msg("Text index ready")
	return nil
}

func (p *PostgresCatalog) insertQuery() string {
	return fmt.Sprintf(`INSERT INTO %s (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`, p.table, drugColumns)
}

// InsertDrugs inserts the entries in one transaction. Entries without an ID get a UUID.
// Rows whose ID already exists are skipped and not counted.
func (p *PostgresCatalog) InsertDrugs(ctx context.Context, drugs []models.Drug) (int, error) {
	const op = "PostgresCatalog.InsertDrugs"

	if len(drugs) == 0 {
		return 0, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, p.insertQuery())
	if err != nil {
		return 0, fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, drug := range drugs {
		id := drug.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := drug.CreatedAt
		if created.IsZero() {
			created = now
		}
		updated := drug.UpdatedAt
		if updated.IsZero() {
			updated = created
		}

		res, err := stmt.ExecContext(ctx,
			id, drug.Name, nullString(drug.GenericName), nullString(drug.Description),
			nullString(drug.Manufacturer), nullString(drug.Category), drug.Price, drug.Stock,
			drug.RequiresPrescription, drug.IsActive, created, updated,
		)
		if err != nil {
			return 0, fmt.Errorf("%s: insert %q: %w", op, drug.Name, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}
	return inserted, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close closes the connection pool.
func (p *PostgresCatalog) Close(ctx context.Context) error {
	return p.db.Close()
}
