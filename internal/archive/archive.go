// Package archive keeps completed site bundles, keyed by run ID, in SQLite or MySQL.
package archive

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

const mysqlDuplicateEntry = 1062

// Run is the metadata stored for one archived bundle.
type Run struct {
	RunID        string    `json:"run_id"`
	Keyword      string    `json:"keyword"`
	Brand        string    `json:"brand"`
	CreatedAt    time.Time `json:"created_at"`
	Files        int       `json:"files"`
	Pillars      int       `json:"pillars"`
	Articles     int       `json:"articles"`
	Placeholders int       `json:"placeholders"`
}

// Store persists bundles.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the archive database and creates its tables.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.ConfigError("archive.dsn is required").Build()
		}
	case DriverMySQL:
		normalized, err := NormalizeMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = normalized
	default:
		return nil, errors.ConfigError("unsupported archive driver").WithContext("driver", driver).Build()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, storeError(err, "failed to open archive database")
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(time.Hour)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	text, key := "TEXT", "TEXT"
	if s.driver == DriverMySQL {
		text, key = "LONGTEXT", "VARCHAR(191)"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id ` + key + ` NOT NULL PRIMARY KEY,
			keyword ` + key + ` NOT NULL,
			brand ` + key + ` NOT NULL,
			created_at BIGINT NOT NULL,
			file_count INTEGER NOT NULL,
			pillar_count INTEGER NOT NULL,
			article_count INTEGER NOT NULL,
			placeholder_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_files (
			run_id ` + key + ` NOT NULL,
			path ` + key + ` NOT NULL,
			content ` + text + ` NOT NULL,
			PRIMARY KEY (run_id, path)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storeError(err, "failed to create archive schema")
		}
	}
	return nil
}

// Save stores run metadata and every bundle file in one transaction.
func (s *Store) Save(ctx context.Context, run Run, b *site.Bundle) error {
	if b == nil {
		return errors.InternalError("nil bundle").Build()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(err, "failed to begin archive transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, keyword, brand, created_at, file_count, pillar_count, article_count, placeholder_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Keyword, run.Brand, run.CreatedAt.UnixMilli(), len(b.Files), run.Pillars, run.Articles, run.Placeholders,
	)
	if err != nil {
		if isDuplicate(err) {
			return errors.StoreError("run already archived").WithContext("run_id", run.RunID).Build()
		}
		return storeError(err, "failed to insert archived run")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_files (run_id, path, content) VALUES (?, ?, ?)`)
	if err != nil {
		return storeError(err, "failed to prepare archive insert")
	}
	defer stmt.Close()
	for _, p := range b.Paths() {
		if _, err := stmt.ExecContext(ctx, run.RunID, p, b.Files[p]); err != nil {
			return storeError(err, "failed to archive file")
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError(err, "failed to commit archive transaction")
	}
	return nil
}

// Delete removes runID and its files. Deleting an unknown run is not an error.
func (s *Store) Delete(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(err, "failed to begin archive transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_files WHERE run_id = ?`, runID); err != nil {
		return storeError(err, "failed to delete archived files")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return storeError(err, "failed to delete archived run")
	}
	if err := tx.Commit(); err != nil {
		return storeError(err, "failed to commit archive transaction")
	}
	return nil
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, keyword, brand, created_at, file_count, pillar_count, article_count, placeholder_count
		 FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storeError(err, "failed to list archived runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.RunID, &r.Keyword, &r.Brand, &created, &r.Files, &r.Pillars, &r.Articles, &r.Placeholders); err != nil {
			return nil, storeError(err, "failed to scan archived run")
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "failed to iterate archived runs")
	}
	return runs, nil
}

// Latest returns the newest archived run.
func (s *Store) Latest(ctx context.Context) (Run, error) {
	runs, err := s.List(ctx, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, errors.NotFoundError("archive is empty").Build()
	}
	return runs[0], nil
}

// Bundle loads the files archived for runID.
func (s *Store) Bundle(ctx context.Context, runID string) (*site.Bundle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, content FROM run_files WHERE run_id = ?`, runID)
	if err != nil {
		return nil, storeError(err, "failed to load archived bundle")
	}
	defer rows.Close()

	b := &site.Bundle{Files: map[string]string{}}
	for rows.Next() {
		var p, content string
		if err := rows.Scan(&p, &content); err != nil {
			return nil, storeError(err, "failed to scan archived file")
		}
		b.Files[p] = content
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "failed to iterate archived files")
	}
	if len(b.Files) == 0 {
		return nil, errors.NotFoundError("no archived bundle for run").WithContext("run_id", runID).Build()
	}
	return b, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	if stderrors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storeError(err error, msg string) error {
	return errors.WrapError(err, errors.CategoryStore, msg).Build()
}
