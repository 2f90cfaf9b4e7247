package database

import (
	"context"
	"errors"
	"fmt"

	"dicegame/models"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// DefaultDocumentName is the row key used when no document name is configured
const DefaultDocumentName = "default"

// PostgresBackend stores the document as one JSONB row of the game_documents table
type PostgresBackend struct {
	db   *DB
	name string
}

// NewPostgresBackend creates a backend storing the named document in db
func NewPostgresBackend(db *DB, name string) *PostgresBackend {
	if name == "" {
		name = DefaultDocumentName
	}
	return &PostgresBackend{db: db, name: name}
}

// Init inserts an empty document row unless one already exists
func (b *PostgresBackend) Init(ctx context.Context) error {
	if err := b.insertEmpty(ctx); err != nil {
		return models.NewPersistenceError("init", err)
	}
	return nil
}

func (b *PostgresBackend) insertEmpty(ctx context.Context) error {
	data, err := models.EncodeDocument(models.NewDocument())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO game_documents (name, body)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`

	result, err := b.db.Exec(ctx, query, b.name, data)
	if err != nil {
		return fmt.Errorf("failed to insert empty document %q: %w", b.name, err)
	}
	if result.RowsAffected() > 0 {
		log.WithField("document", b.name).Info("Initialized empty game document")
	}
	return nil
}

// Load reads the document row, creating it if it does not exist yet
func (b *PostgresBackend) Load(ctx context.Context) (*models.Document, error) {
	query := `
		SELECT body
		FROM game_documents
		WHERE name = $1
	`

	var body []byte
	err := b.db.QueryRow(ctx, query, b.name).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := b.insertEmpty(ctx); err != nil {
			return nil, models.NewPersistenceError("load", err)
		}
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, models.NewPersistenceError("load", fmt.Errorf("failed to read document %q: %w", b.name, err))
	}

	doc, err := models.DecodeDocument(body)
	if err != nil {
		return nil, models.NewPersistenceError("load", err)
	}
	return doc, nil
}

// Save replaces the document row in a single transaction
func (b *PostgresBackend) Save(ctx context.Context, doc *models.Document) error {
	data, err := models.EncodeDocument(doc)
	if err != nil {
		return models.NewPersistenceError("save", err)
	}

	query := `
		INSERT INTO game_documents (name, body, version, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET body = EXCLUDED.body,
		    version = game_documents.version + 1,
		    updated_at = NOW()
	`

	err = b.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, b.name, data); err != nil {
			return fmt.Errorf("failed to write document %q: %w", b.name, err)
		}
		return nil
	})
	if err != nil {
		return models.NewPersistenceError("save", err)
	}
	return nil
}

// Version returns how many times the document row has been replaced
func (b *PostgresBackend) Version(ctx context.Context) (int64, error) {
	var version int64
	err := b.db.QueryRow(ctx, `SELECT version FROM game_documents WHERE name = $1`, b.name).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read document version: %w", err)
	}
	return version, nil
}

// Close closes the connection pool
func (b *PostgresBackend) Close() error {
	b.db.Close()
	return nil
}
