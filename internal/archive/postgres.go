package archive

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/vietddude/faultline/internal/faultlog"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// StoredArchive is one row of fault_archives.
type StoredArchive struct {
	ID         int64          `db:"id"`
	ArchivedAt time.Time      `db:"archived_at"`
	ErrorCount int            `db:"error_count"`
	Contexts   pq.StringArray `db:"contexts"`
	Statistics []byte         `db:"statistics"`
	Errors     []byte         `db:"errors"`
}

// Decode unpacks the stored JSON columns.
func (r StoredArchive) Decode() (faultlog.Archive, error) {
	a := faultlog.Archive{ArchivedAt: r.ArchivedAt, ErrorCount: r.ErrorCount}
	if err := json.Unmarshal(r.Statistics, &a.Statistics); err != nil {
		return a, fmt.Errorf("failed to decode statistics: %w", err)
	}
	if err := json.Unmarshal(r.Errors, &a.Errors); err != nil {
		return a, fmt.Errorf("failed to decode errors: %w", err)
	}
	return a, nil
}

// PostgresSink inserts snapshots into the fault_archives table.
type PostgresSink struct {
	db *sqlx.DB
}

// NewPostgresSink opens the database and applies the embedded migrations.
func NewPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure pool
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresSink{db: db}, nil
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	// Goose needs the *sql.DB that sqlx.DB wraps
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Ship inserts a as one row.
func (s *PostgresSink) Ship(ctx context.Context, a faultlog.Archive) error {
	stats, err := json.Marshal(a.Statistics)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	errs, err := json.Marshal(a.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO fault_archives (archived_at, error_count, contexts, statistics, errors)
		VALUES (:archived_at, :error_count, :contexts, :statistics, :errors)`,
		map[string]any{
			"archived_at": a.ArchivedAt,
			"error_count": a.ErrorCount,
			"contexts":    pq.StringArray(contextsOf(a)),
			"statistics":  string(stats),
			"errors":      string(errs),
		})
	if err != nil {
		return fmt.Errorf("failed to insert archive: %w", err)
	}
	return nil
}

// Recent returns up to n rows, newest first.
func (s *PostgresSink) Recent(ctx context.Context, n int) ([]StoredArchive, error) {
	var rows []StoredArchive
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, archived_at, error_count, contexts, statistics, errors
		FROM fault_archives
		ORDER BY archived_at DESC, id DESC
		LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query archives: %w", err)
	}
	return rows, nil
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
