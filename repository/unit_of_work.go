package repository

import (
	"context"
	"fmt"
	"time"

	"dicegame/events"
	"dicegame/models"
	"dicegame/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultSaveTimeout bounds a single durable write
const DefaultSaveTimeout = 5 * time.Second

// SaveObserver is notified after every attempted save
type SaveObserver func(duration time.Duration, err error)

// FactoryOption configures a unit of work factory
type FactoryOption func(*unitOfWorkFactory)

// WithSaveTimeout overrides DefaultSaveTimeout
func WithSaveTimeout(timeout time.Duration) FactoryOption {
	return func(f *unitOfWorkFactory) {
		if timeout > 0 {
			f.saveTimeout = timeout
		}
	}
}

// WithSaveObserver registers a callback invoked after each save attempt
func WithSaveObserver(observer SaveObserver) FactoryOption {
	return func(f *unitOfWorkFactory) {
		f.saveObserver = observer
	}
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. Every unit of work created
// by the factory shares one lock, so their load-mutate-save cycles never interleave.
func NewUnitOfWorkFactory(backend service.DocumentBackend, eventBus *events.Bus, opts ...FactoryOption) service.UnitOfWorkFactory {
	f := &unitOfWorkFactory{
		backend:     backend,
		eventBus:    eventBus,
		lock:        make(chan struct{}, 1),
		saveTimeout: DefaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type unitOfWorkFactory struct {
	backend      service.DocumentBackend
	eventBus     *events.Bus
	lock         chan struct{}
	saveTimeout  time.Duration
	saveObserver SaveObserver
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		factory:          f,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	factory          *unitOfWorkFactory
	id               string
	ctx              context.Context
	doc              *models.Document
	held             bool
	transactionalBus *events.TransactionalBus
	gameRepo         service.GameRepository
	playerRepo       service.PlayerRepository
}

// Begin waits for exclusive access and loads the current document
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.held {
		return fmt.Errorf("unit of work already started")
	}

	select {
	case u.factory.lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire document lock: %w", ctx.Err())
	}

	doc, err := u.factory.backend.Load(ctx)
	if err != nil {
		<-u.factory.lock
		return fmt.Errorf("failed to load document: %w", err)
	}

	u.id = uuid.NewString()
	u.ctx = ctx
	u.doc = doc
	u.held = true
	u.gameRepo = NewGameRepository(doc)
	u.playerRepo = NewPlayerRepository(doc)

	log.WithFields(log.Fields{
		"unitOfWork": u.id,
		"games":      len(doc.Games),
		"players":    len(doc.Players),
	}).Debug("Unit of work started")

	return nil
}

// Commit saves the working document, then flushes events and releases the lock.
// Events reach the bus in commit order. On a failed save the stored document is
// untouched and pending events are dropped.
func (u *unitOfWork) Commit() error {
	if !u.held {
		return fmt.Errorf("no unit of work to commit")
	}
	defer u.release()

	saveCtx, cancel := context.WithTimeout(u.ctx, u.factory.saveTimeout)
	start := time.Now()
	err := u.factory.backend.Save(saveCtx, u.doc)
	cancel()

	if u.factory.saveObserver != nil {
		u.factory.saveObserver(time.Since(start), err)
	}

	if err != nil {
		u.transactionalBus.Discard()
		log.WithFields(log.Fields{
			"unitOfWork": u.id,
			"error":      err,
		}).Error("Failed to save document")
		return fmt.Errorf("failed to commit unit of work: %w", err)
	}

	log.WithFields(log.Fields{
		"unitOfWork":    u.id,
		"pendingEvents": u.transactionalBus.Pending(),
	}).Debug("Unit of work committed")

	// Events outlive the caller's request context
	u.transactionalBus.Flush(context.Background())
	return nil
}

// Rollback discards the working document and releases the lock
func (u *unitOfWork) Rollback() error {
	if !u.held {
		return nil
	}

	u.release()
	u.transactionalBus.Discard()

	log.WithField("unitOfWork", u.id).Debug("Unit of work rolled back")
	return nil
}

func (u *unitOfWork) release() {
	u.held = false
	u.doc = nil
	<-u.factory.lock
}

// GameRepository returns the game repository for this unit of work
func (u *unitOfWork) GameRepository() service.GameRepository {
	if u.gameRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.gameRepo
}

// PlayerRepository returns the player repository for this unit of work
func (u *unitOfWork) PlayerRepository() service.PlayerRepository {
	if u.playerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.playerRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
