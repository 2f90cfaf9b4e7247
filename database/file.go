package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dicegame/models"

	log "github.com/sirupsen/logrus"
)

// FileBackend persists the document as a single JSON file
type FileBackend struct {
	path string
}

// NewFileBackend creates a file backend for the given document path
func NewFileBackend(path string) (*FileBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("document path is required")
	}
	return &FileBackend{path: filepath.Clean(path)}, nil
}

// Path returns the location of the document file
func (b *FileBackend) Path() string {
	return b.path
}

// Init creates the parent directory and an empty document if none exists yet
func (b *FileBackend) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return models.NewPersistenceError("init", fmt.Errorf("failed to create data directory: %w", err))
	}

	_, err := os.Stat(b.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return models.NewPersistenceError("init", fmt.Errorf("failed to stat document: %w", err))
	}

	if err := b.Save(ctx, models.NewDocument()); err != nil {
		return models.NewPersistenceError("init", err)
	}
	log.WithField("path", b.path).Info("Initialized empty game document")
	return nil
}

// Load reads the document, creating and persisting an empty one if the file is absent
func (b *FileBackend) Load(ctx context.Context) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewPersistenceError("load", err)
	}

	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		doc := models.NewDocument()
		if err := b.Save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, models.NewPersistenceError("load", fmt.Errorf("failed to read %s: %w", b.path, err))
	}

	doc, err := models.DecodeDocument(data)
	if err != nil {
		return nil, models.NewPersistenceError("load", err)
	}
	return doc, nil
}

// Save replaces the whole document. The new content is written to a temporary
// file in the same directory and renamed over the target, so a concurrent reader
// sees either the old or the new document.
func (b *FileBackend) Save(ctx context.Context, doc *models.Document) error {
	data, err := models.EncodeDocument(doc)
	if err != nil {
		return models.NewPersistenceError("save", err)
	}
	if err := b.writeAtomic(ctx, data); err != nil {
		return models.NewPersistenceError("save", err)
	}
	return nil
}

// Close is a no-op for file storage
func (b *FileBackend) Close() error {
	return nil
}

func (b *FileBackend) writeAtomic(ctx context.Context, data []byte) (err error) {
	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Last point where the write can be abandoned without touching the document
	if err = ctx.Err(); err != nil {
		return fmt.Errorf("save abandoned before commit: %w", err)
	}

	if err = os.Rename(tmpPath, b.path); err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}

	// The new document is already visible, a failed directory sync only weakens crash durability
	if syncErr := syncDir(dir); syncErr != nil {
		log.WithFields(log.Fields{
			"dir":   dir,
			"error": syncErr,
		}).Warn("Failed to sync document directory")
	}
	return nil
}

// syncDir flushes directory metadata so a completed rename survives a crash
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync directory: %w", err)
	}
	return nil
}
