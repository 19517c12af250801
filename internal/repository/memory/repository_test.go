package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-digest/internal/model"
	"email-digest/internal/repository"
)

func TestInMemoryThreadRepositoryConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryThreadRepository()
	thread := model.RawThread{ID: "t-1", Messages: []model.RawMessage{{ID: "m-1", Plain: "hi"}}}

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.CreatePending(ctx, model.NewThreadRecord(thread))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	records, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestInMemoryThreadRepositoryTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryThreadRepository()
	thread := model.RawThread{ID: "t-1", Messages: []model.RawMessage{{ID: "m-1", Plain: "hi"}}}

	_, err := repo.CreatePending(ctx, model.NewThreadRecord(thread))
	require.NoError(t, err)

	require.NoError(t, repo.Fail(ctx, "t-1", "boom"))
	assert.Error(t, repo.Complete(ctx, "t-1", "s", model.CategoryOthers))
	assert.ErrorIs(t, repo.Complete(ctx, "t-2", "s", model.CategoryOthers), repository.ErrNotFound)

	rec, err := repo.FindByThreadID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Equal(t, "boom", rec.FailureReason)

	require.NoError(t, repo.Delete(ctx, "t-1"))
	_, err = repo.FindByThreadID(ctx, "t-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInMemoryContactRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryContactRepository()

	first := model.NewContactRecord("alice@example.com", model.SignatureFields{Name: "Alice"}, model.ImportanceLow)
	require.NoError(t, repo.Upsert(ctx, first))
	second := model.NewContactRecord("ALICE@example.com", model.SignatureFields{Name: "Alice B."}, model.ImportanceHigh)
	require.NoError(t, repo.Upsert(ctx, second))

	contacts, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, first.ID, contacts[0].ID)
	assert.Equal(t, "Alice B.", contacts[0].Name)
	assert.Equal(t, model.ImportanceHigh, contacts[0].Importance)
}
