// Package events carries store notifications. Committed units of work hand their
// events to the Bus in commit order; each handler then runs on its own goroutine,
// so subscribers must not rely on delivery order.
package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeGameCreated    EventType = "game_created"
	EventTypeGameUpdated    EventType = "game_updated"
	EventTypePlayerJoined   EventType = "player_joined"
	EventTypeDiceRolled     EventType = "dice_rolled"
	EventTypeGameFinished   EventType = "game_finished"
	EventTypeGamesCleanedUp EventType = "games_cleaned_up"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// GameCreatedEvent represents a newly started game
type GameCreatedEvent struct {
	GameID       string  `json:"gameId"`
	ChatID       int64   `json:"chatId"`
	InitialScore float64 `json:"initialScore"`
}

func (e GameCreatedEvent) Type() EventType {
	return EventTypeGameCreated
}

// GameUpdatedEvent represents a targeted field update, including cancellation
type GameUpdatedEvent struct {
	GameID    string `json:"gameId"`
	ChatID    int64  `json:"chatId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

func (e GameUpdatedEvent) Type() EventType {
	return EventTypeGameUpdated
}

// PlayerJoinedEvent represents a player entering a game for the first time
type PlayerJoinedEvent struct {
	GameID   string `json:"gameId"`
	ChatID   int64  `json:"chatId"`
	UserID   int64  `json:"userId"`
	Username string `json:"username,omitempty"`
}

func (e PlayerJoinedEvent) Type() EventType {
	return EventTypePlayerJoined
}

// DiceRolledEvent represents a recorded roll
type DiceRolledEvent struct {
	GameID          string  `json:"gameId"`
	ChatID          int64   `json:"chatId"`
	UserID          int64   `json:"userId"`
	OriginalRoll    int     `json:"originalRoll"`
	WeatherModifier float64 `json:"weatherModifier"`
	FinalScore      float64 `json:"finalScore"`
}

func (e DiceRolledEvent) Type() EventType {
	return EventTypeDiceRolled
}

// GameFinishedEvent represents a game reaching the completed state
type GameFinishedEvent struct {
	GameID   string `json:"gameId"`
	ChatID   int64  `json:"chatId"`
	WinnerID *int64 `json:"winnerId,omitempty"`
}

func (e GameFinishedEvent) Type() EventType {
	return EventTypeGameFinished
}

// GamesCleanedUpEvent represents a cleanup sweep that removed stale games
type GamesCleanedUpEvent struct {
	GameIDs  []string `json:"gameIds"`
	HoursOld int      `json:"hoursOld"`
}

func (e GamesCleanedUpEvent) Type() EventType {
	return EventTypeGamesCleanedUp
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes() {
		b.Subscribe(eventType, handler)
	}
}

// AllEventTypes lists every event type emitted by the store
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeGameCreated,
		EventTypeGameUpdated,
		EventTypePlayerJoined,
		EventTypeDiceRolled,
		EventTypeGameFinished,
		EventTypeGamesCleanedUp,
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	// Handlers run asynchronously so a slow subscriber never holds up the store
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns the number of events waiting for commit
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush is called after the document was saved
func (b *TransactionalBus) Flush(ctx context.Context) {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events to main event bus")

	if b.real != nil {
		for _, ev := range b.pending {
			b.real.Emit(ctx, ev)
		}
	}
	b.pending = nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
