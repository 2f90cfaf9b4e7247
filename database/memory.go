package database

import (
	"context"
	"sync"

	"dicegame/models"
)

// MemoryBackend keeps the serialized document in memory. It goes through the same
// encode/decode path as the durable backends, so callers never share pointers with it.
type MemoryBackend struct {
	mu      sync.Mutex
	data    []byte
	saveErr error
	saves   int
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Init stores an empty document unless one is already present
func (b *MemoryBackend) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.data != nil {
		return nil
	}
	data, err := models.EncodeDocument(models.NewDocument())
	if err != nil {
		return models.NewPersistenceError("init", err)
	}
	b.data = data
	return nil
}

// Load decodes a fresh copy of the stored document, creating an empty one if absent
func (b *MemoryBackend) Load(ctx context.Context) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewPersistenceError("load", err)
	}

	b.mu.Lock()
	data := b.data
	b.mu.Unlock()

	if data == nil {
		doc := models.NewDocument()
		if err := b.Save(ctx, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	doc, err := models.DecodeDocument(data)
	if err != nil {
		return nil, models.NewPersistenceError("load", err)
	}
	return doc, nil
}

// Save replaces the stored document unless a save error was injected
func (b *MemoryBackend) Save(ctx context.Context, doc *models.Document) error {
	if err := ctx.Err(); err != nil {
		return models.NewPersistenceError("save", err)
	}

	data, err := models.EncodeDocument(doc)
	if err != nil {
		return models.NewPersistenceError("save", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.saveErr != nil {
		return models.NewPersistenceError("save", b.saveErr)
	}
	b.data = data
	b.saves++
	return nil
}

// Close is a no-op
func (b *MemoryBackend) Close() error {
	return nil
}

// SetSaveError makes every following Save fail with err until cleared with nil
func (b *MemoryBackend) SetSaveError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveErr = err
}

// Saves returns how many saves succeeded
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// Bytes returns a copy of the currently stored document
func (b *MemoryBackend) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}
