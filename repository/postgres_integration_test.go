package repository

import (
	"context"
	"testing"

	"dicegame/database"
	"dicegame/events"
	"dicegame/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresBackend_UnitOfWorkRoundTrip(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	backend := database.NewPostgresBackend(testDB.DB, "integration")
	require.NoError(t, backend.Init(ctx))
	// Init twice must not overwrite the existing row
	require.NoError(t, backend.Init(ctx))

	factory := NewUnitOfWorkFactory(backend, events.NewBus())

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	game, err := uow.GameRepository().Create(ctx, 42, 2.5, baseTime)
	require.NoError(t, err)
	_, added, err := uow.GameRepository().AddPlayer(ctx, game.ID, 7, "alice", baseTime)
	require.NoError(t, err)
	require.True(t, added)
	_, err = uow.PlayerRepository().RecordJoin(ctx, 7, "alice", baseTime)
	require.NoError(t, err)
	require.NoError(t, uow.Commit())

	version, err := backend.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	doc, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, doc.Games, game.ID)
	stored := doc.Games[game.ID]
	assert.Equal(t, int64(42), stored.ChatID)
	assert.Equal(t, 2.5, stored.CurrentScore)
	assert.True(t, stored.CreatedAt.Equal(baseTime))
	assert.Contains(t, stored.Players, int64(7))
	assert.Equal(t, 1, doc.Players[7].GamesPlayed)
}

func TestPostgresBackend_LoadCreatesMissingDocument(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	backend := database.NewPostgresBackend(testDB.DB, "")

	doc, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Games)
	assert.Empty(t, doc.Players)

	version, err := backend.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestMigrations_StatusAndDown(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	version, dirty, applied, err := database.MigrationStatus(testDB.URL)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	require.NoError(t, database.MigrateDown(testDB.URL, 1))

	_, _, applied, err = database.MigrationStatus(testDB.URL)
	require.NoError(t, err)
	assert.False(t, applied)
}
