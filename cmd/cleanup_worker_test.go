package cmd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCleaner struct {
	mock.Mock
	mu    sync.Mutex
	calls int
}

func (m *mockCleaner) CleanupOldGames(ctx context.Context, hoursOld int) (int, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	args := m.Called(ctx, hoursOld)
	return args.Int(0), args.Error(1)
}

func (m *mockCleaner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestStartCleanupWorker_RunsImmediatelyAndOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleaner := new(mockCleaner)
	cleaner.On("CleanupOldGames", mock.Anything, 24).Return(2, nil)

	stop := StartCleanupWorker(ctx, cleaner, 24, 20*time.Millisecond)

	assert.Eventually(t, func() bool { return cleaner.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)

	stop()
	after := cleaner.Calls()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, cleaner.Calls())

	// Stopping twice is harmless
	stop()
}

func TestStartCleanupWorker_KeepsRunningAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cleaner := new(mockCleaner)
	cleaner.On("CleanupOldGames", mock.Anything, 12).Return(0, errors.New("disk full"))

	stop := StartCleanupWorker(ctx, cleaner, 12, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return cleaner.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	stop()
}
