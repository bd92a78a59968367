package postgres_test

import (
	"context"
	"database/sql"
	"testing"

	"exposureshield/pkg/storage/postgres"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverdatabasesql"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertest"
	"github.com/stretchr/testify/require"
)

type notifyJobArgs struct {
	FeedbackID string `json:"feedbackId"`
}

func (notifyJobArgs) Kind() string { return "test_notify" }

func migrateRiver(t *testing.T, storage *postgres.Store) {
	t.Helper()
	migrator, err := rivermigrate.New(riverdatabasesql.New(storage.DB.(*sql.DB)), nil)
	require.NoError(t, err)
	migrations := migrator.AllVersions()
	latestVersion := migrations[len(migrations)-1].Version
	_, err = migrator.Migrate(t.Context(), rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{
		TargetVersion: latestVersion,
	})
	require.NoError(t, err)
}

func TestStore_AddJob_WithinTransaction_UsesTxPath(t *testing.T) {
	pg, cleanup := setupTestDB(t)
	defer cleanup()
	migrateRiver(t, pg)

	ctx := context.Background()

	txStorage, err := pg.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = txStorage.Rollback() }()

	added, err := txStorage.AddJob(ctx, notifyJobArgs{FeedbackID: "f-1"}, &river.InsertOpts{})
	require.NoError(t, err)
	require.True(t, added)
	job := rivertest.RequireInsertedTx[*riverdatabasesql.Driver](
		ctx,
		t,
		txStorage.(*postgres.Store).DB.(*sql.Tx),
		&notifyJobArgs{},
		nil,
	)
	require.Equal(t, "f-1", job.Args.FeedbackID)
}

func TestStore_AddJob_OutsideTransaction_UsesDBPath(t *testing.T) {
	pg, cleanup := setupTestDB(t)
	defer cleanup()
	migrateRiver(t, pg)

	ctx := context.Background()

	added, err := pg.AddJob(ctx, notifyJobArgs{FeedbackID: "f-2"}, &river.InsertOpts{})
	require.NoError(t, err)
	require.True(t, added)
	job := rivertest.RequireInserted[*riverdatabasesql.Driver](
		ctx,
		t,
		riverdatabasesql.New(pg.DB.(*sql.DB)),
		&notifyJobArgs{},
		nil,
	)
	require.Equal(t, "f-2", job.Args.FeedbackID)
}

func TestStore_AddJob_WithoutQueue(t *testing.T) {
	added, err := (&postgres.Store{}).AddJob(context.Background(), notifyJobArgs{FeedbackID: "f-3"}, nil)
	require.Error(t, err)
	require.False(t, added)
}
