package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dicegame/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS game_documents (
    name       TEXT PRIMARY KEY,
    body       BLOB    NOT NULL,
    version    INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT    NOT NULL
)`

// SQLiteBackend stores the document as one row of an embedded SQLite database
type SQLiteBackend struct {
	sqlDB *sql.DB
	name  string
}

// OpenSQLite opens (or creates) the SQLite file at path and ensures the schema exists
func OpenSQLite(path, name string) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if name == "" {
		name = DefaultDocumentName
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteBackend{sqlDB: sqlDB, name: name}, nil
}

// Init inserts an empty document row unless one already exists
func (b *SQLiteBackend) Init(ctx context.Context) error {
	if err := b.insertEmpty(ctx); err != nil {
		return models.NewPersistenceError("init", err)
	}
	return nil
}

func (b *SQLiteBackend) insertEmpty(ctx context.Context) error {
	data, err := models.EncodeDocument(models.NewDocument())
	if err != nil {
		return err
	}
	_, err = b.sqlDB.ExecContext(ctx,
		`INSERT INTO game_documents (name, body, version, updated_at)
		 VALUES (?, ?, 0, ?)
		 ON CONFLICT(name) DO NOTHING`,
		b.name, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert empty document: %w", err)
	}
	return nil
}

// Load reads the document row, creating it if it does not exist yet
func (b *SQLiteBackend) Load(ctx context.Context) (*models.Document, error) {
	var body []byte
	err := b.sqlDB.QueryRowContext(ctx, `SELECT body FROM game_documents WHERE name = ?`, b.name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		if err := b.insertEmpty(ctx); err != nil {
			return nil, models.NewPersistenceError("load", err)
		}
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, models.NewPersistenceError("load", fmt.Errorf("read document: %w", err))
	}

	doc, err := models.DecodeDocument(body)
	if err != nil {
		return nil, models.NewPersistenceError("load", err)
	}
	return doc, nil
}

// Save replaces the document row inside a transaction
func (b *SQLiteBackend) Save(ctx context.Context, doc *models.Document) error {
	data, err := models.EncodeDocument(doc)
	if err != nil {
		return models.NewPersistenceError("save", err)
	}

	tx, err := b.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return models.NewPersistenceError("save", fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO game_documents (name, body, version, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(name) DO UPDATE SET
		     body = excluded.body,
		     version = game_documents.version + 1,
		     updated_at = excluded.updated_at`,
		b.name, data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.NewPersistenceError("save", fmt.Errorf("write document: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return models.NewPersistenceError("save", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Close releases the SQLite connection
func (b *SQLiteBackend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}
