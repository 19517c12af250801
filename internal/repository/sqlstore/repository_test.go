package sqlstore

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-digest/internal/model"
	"email-digest/internal/repository"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})
	return db
}

func testThread(id string) model.RawThread {
	return model.RawThread{
		ID: id,
		Messages: []model.RawMessage{
			{ID: id + "-m1", Sender: "Alice <alice@example.com>", Subject: "Hello", Plain: "Hi there"},
		},
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url    string
		driver string
		dsn    string
	}{
		{"postgres://u:p@localhost/db", DriverPostgres, "postgres://u:p@localhost/db"},
		{"sqlite://./data.db", DriverSQLite, "./data.db"},
		{"file:test.db?cache=shared", DriverSQLite, "file:test.db?cache=shared"},
		{":memory:", DriverSQLite, ":memory:"},
	}
	for _, tt := range tests {
		driver, dsn, err := parseURL(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.driver, driver)
		assert.Equal(t, tt.dsn, dsn)
	}

	_, _, err := parseURL("mysql://localhost")
	assert.Error(t, err)
}

func TestThreadRepositoryCreatePendingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(newTestDB(t))

	created, err := repo.CreatePending(ctx, model.NewThreadRecord(testThread("t-1")))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreatePending(ctx, model.NewThreadRecord(testThread("t-1")))
	require.NoError(t, err)
	assert.False(t, created)

	records, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, model.StatusPending, records[0].Status)
	assert.Equal(t, "Alice <alice@example.com>", records[0].Sender)
}

func TestThreadRepositoryTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(newTestDB(t))

	for _, id := range []string{"ok", "bad"} {
		_, err := repo.CreatePending(ctx, model.NewThreadRecord(testThread(id)))
		require.NoError(t, err)
	}

	require.NoError(t, repo.Complete(ctx, "ok", "a summary", model.CategoryDelivery))
	require.NoError(t, repo.Fail(ctx, "bad", "summarizer exploded"))

	ok, err := repo.FindByThreadID(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, ok.Status)
	assert.Equal(t, "a summary", ok.Summary)
	assert.Equal(t, model.CategoryDelivery, ok.Category)

	failed, err := repo.List(ctx, model.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "summarizer exploded", failed[0].FailureReason)

	// Terminal states do not transition again.
	assert.Error(t, repo.Complete(ctx, "bad", "late", model.CategoryOthers))
	assert.ErrorIs(t, repo.Fail(ctx, "missing", "x"), repository.ErrNotFound)
}

func TestThreadRepositorySkippedAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewThreadRepository(newTestDB(t))

	_, err := repo.CreatePending(ctx, model.NewThreadRecord(testThread("t-1")))
	require.NoError(t, err)
	require.NoError(t, repo.AddSkipped(ctx, model.NewSkippedMessage("t-1", "m-9", "no content")))

	skipped, err := repo.ListSkipped(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "no content", skipped[0].Reason)

	require.NoError(t, repo.Delete(ctx, "t-1"))

	_, err = repo.FindByThreadID(ctx, "t-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	skipped, err = repo.ListSkipped(ctx, "t-1")
	require.NoError(t, err)
	assert.Empty(t, skipped)
}

func TestContactRepositoryUpsertKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	repo := NewContactRepository(newTestDB(t))

	first := model.NewContactRecord("Alice <Alice@Example.com>",
		model.SignatureFields{Name: "Alice", Company: "Acme Inc."}, model.ImportanceLow)
	require.NoError(t, repo.Upsert(ctx, first))

	second := model.NewContactRecord("alice@example.com",
		model.SignatureFields{Name: "Alice Smith", Company: "Globex", JobTitle: "CTO"}, model.ImportanceHigh)
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	contacts, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)

	contact := contacts[0]
	assert.Equal(t, "alice@example.com", contact.Email)
	assert.Equal(t, "Alice Smith", contact.Name)
	assert.Equal(t, "Globex", contact.Company)
	assert.Equal(t, "CTO", contact.JobTitle)
	assert.Equal(t, model.NotAvailable, contact.Phone)
	assert.Equal(t, model.ImportanceHigh, contact.Importance)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
