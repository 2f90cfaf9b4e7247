package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventDeliveryIntegration tests the complete event flow from TransactionalBus to main Bus
func TestEventDeliveryIntegration(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan DiceRolledEvent, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	mainBus.Subscribe(EventTypeDiceRolled, func(ctx context.Context, event Event) {
		defer wg.Done()
		if rolled, ok := event.(DiceRolledEvent); ok {
			eventReceived <- rolled
		} else {
			t.Errorf("Expected DiceRolledEvent, got %T", event)
		}
	})

	testEvent := DiceRolledEvent{
		GameID:          "game_42_1700000000000",
		ChatID:          42,
		UserID:          7,
		OriginalRoll:    4,
		WeatherModifier: 0.3,
		FinalScore:      4.3,
	}

	transactionalBus.Publish(testEvent)
	assert.Equal(t, 1, transactionalBus.Pending())

	// Flush events (simulating a successful save)
	transactionalBus.Flush(context.Background())
	assert.Equal(t, 0, transactionalBus.Pending())

	wg.Wait()

	select {
	case received := <-eventReceived:
		assert.Equal(t, testEvent, received)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

// TestMultipleEventsDelivery tests delivering multiple events in sequence
func TestMultipleEventsDelivery(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventsReceived := make(chan PlayerJoinedEvent, 3)
	var wg sync.WaitGroup
	wg.Add(3)

	mainBus.Subscribe(EventTypePlayerJoined, func(ctx context.Context, event Event) {
		defer wg.Done()
		if joined, ok := event.(PlayerJoinedEvent); ok {
			eventsReceived <- joined
		}
	})

	for _, userID := range []int64{1, 2, 3} {
		transactionalBus.Publish(PlayerJoinedEvent{GameID: "g", ChatID: 100, UserID: userID})
	}

	transactionalBus.Flush(context.Background())
	wg.Wait()

	// Order may vary since handlers run in goroutines
	userIDs := make(map[int64]bool)
	for i := 0; i < 3; i++ {
		select {
		case event := <-eventsReceived:
			userIDs[event.UserID] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("Only received %d out of 3 events", len(userIDs))
		}
	}

	assert.True(t, userIDs[1])
	assert.True(t, userIDs[2])
	assert.True(t, userIDs[3])
}

// TestTransactionalBusDiscard tests that discarded events are not delivered
func TestTransactionalBusDiscard(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan bool, 1)
	mainBus.Subscribe(EventTypeGameCreated, func(ctx context.Context, event Event) {
		eventReceived <- true
	})

	transactionalBus.Publish(GameCreatedEvent{GameID: "g", ChatID: 1})

	// Discard instead of flush (simulating a failed save)
	transactionalBus.Discard()
	transactionalBus.Flush(context.Background())

	select {
	case <-eventReceived:
		t.Fatal("Event was received despite being discarded")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	bus := NewBus()
	done := make(chan struct{})

	bus.Subscribe(EventTypeGameFinished, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeGameFinished, func(ctx context.Context, event Event) {
		close(done)
	})

	bus.Emit(context.Background(), GameFinishedEvent{GameID: "g"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler was not called")
	}
}

type capturingPublisher struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (p *capturingPublisher) PublishMsg(msg *nats.Msg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestNATSForwarder_Handle(t *testing.T) {
	pub := &capturingPublisher{}
	forwarder := NewNATSForwarder(pub, "")

	winner := int64(7)
	forwarder.Handle(context.Background(), GameFinishedEvent{GameID: "game_1_2", ChatID: 1, WinnerID: &winner})

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, "dicegame.game_finished", msg.Subject)
	assert.Equal(t, "game_finished", msg.Header.Get("Event-Type"))
	assert.NotEmpty(t, msg.Header.Get(nats.MsgIdHdr))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "game_1_2", payload["gameId"])
	assert.Equal(t, float64(7), payload["winnerId"])
}

func TestNATSForwarder_PublishErrorIsSwallowed(t *testing.T) {
	pub := &capturingPublisher{err: errors.New("connection closed")}
	forwarder := NewNATSForwarder(pub, "games")

	assert.NotPanics(t, func() {
		forwarder.Handle(context.Background(), GameCreatedEvent{GameID: "g"})
	})
	assert.Equal(t, "games.game_created", forwarder.Subject(EventTypeGameCreated))
}

func TestNATSForwarder_AttachForwardsBusEvents(t *testing.T) {
	bus := NewBus()
	pub := &capturingPublisher{}
	NewNATSForwarder(pub, "").Attach(bus)

	bus.Emit(context.Background(), GamesCleanedUpEvent{GameIDs: []string{"a", "b"}, HoursOld: 24})

	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.msgs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
