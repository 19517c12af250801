package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"email-digest/internal/model"
	"email-digest/internal/repository"
)

type InMemoryThreadRepository struct {
	threads map[string]*model.ThreadRecord
	skipped map[string][]model.SkippedMessage
	mutex   sync.RWMutex
}

func NewInMemoryThreadRepository() *InMemoryThreadRepository {
	return &InMemoryThreadRepository{
		threads: make(map[string]*model.ThreadRecord),
		skipped: make(map[string][]model.SkippedMessage),
	}
}

func (r *InMemoryThreadRepository) CreatePending(ctx context.Context, rec *model.ThreadRecord) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.threads[rec.ThreadID]; exists {
		return false, nil
	}
	stored := *rec
	r.threads[rec.ThreadID] = &stored
	return true, nil
}

func (r *InMemoryThreadRepository) Complete(ctx context.Context, threadID, summary, category string) error {
	return r.transition(threadID, func(rec *model.ThreadRecord) {
		rec.Status = model.StatusCompleted
		rec.Summary = summary
		rec.Category = category
	})
}

func (r *InMemoryThreadRepository) Fail(ctx context.Context, threadID, reason string) error {
	return r.transition(threadID, func(rec *model.ThreadRecord) {
		rec.Status = model.StatusFailed
		rec.FailureReason = reason
	})
}

func (r *InMemoryThreadRepository) transition(threadID string, apply func(*model.ThreadRecord)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, exists := r.threads[threadID]
	if !exists {
		return repository.ErrNotFound
	}
	if rec.Status != model.StatusPending {
		return fmt.Errorf("thread %s is %s, not pending", threadID, rec.Status)
	}
	apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryThreadRepository) FindByThreadID(ctx context.Context, threadID string) (*model.ThreadRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, exists := r.threads[threadID]
	if !exists {
		return nil, repository.ErrNotFound
	}
	found := *rec
	return &found, nil
}

func (r *InMemoryThreadRepository) List(ctx context.Context, status model.ThreadStatus) ([]*model.ThreadRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var records []*model.ThreadRecord
	for _, rec := range r.threads {
		if status != "" && rec.Status != status {
			continue
		}
		found := *rec
		records = append(records, &found)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (r *InMemoryThreadRepository) Delete(ctx context.Context, threadID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.threads, threadID)
	delete(r.skipped, threadID)
	return nil
}

func (r *InMemoryThreadRepository) AddSkipped(ctx context.Context, skipped model.SkippedMessage) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.skipped[skipped.ThreadID] = append(r.skipped[skipped.ThreadID], skipped)
	return nil
}

func (r *InMemoryThreadRepository) ListSkipped(ctx context.Context, threadID string) ([]model.SkippedMessage, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return append([]model.SkippedMessage(nil), r.skipped[threadID]...), nil
}

type InMemoryContactRepository struct {
	contacts map[string]*model.ContactRecord
	mutex    sync.RWMutex
}

func NewInMemoryContactRepository() *InMemoryContactRepository {
	return &InMemoryContactRepository{
		contacts: make(map[string]*model.ContactRecord),
	}
}

func (r *InMemoryContactRepository) Upsert(ctx context.Context, rec *model.ContactRecord) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec.Email = model.NormalizeEmail(rec.Email)
	if existing, exists := r.contacts[rec.Email]; exists {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	rec.UpdatedAt = time.Now().UTC()
	stored := *rec
	r.contacts[rec.Email] = &stored
	return nil
}

func (r *InMemoryContactRepository) FindByEmail(ctx context.Context, email string) (*model.ContactRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, exists := r.contacts[model.NormalizeEmail(email)]
	if !exists {
		return nil, repository.ErrNotFound
	}
	found := *rec
	return &found, nil
}

func (r *InMemoryContactRepository) FindAll(ctx context.Context) ([]*model.ContactRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	contacts := make([]*model.ContactRecord, 0, len(r.contacts))
	for _, rec := range r.contacts {
		found := *rec
		contacts = append(contacts, &found)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Email < contacts[j].Email
	})
	return contacts, nil
}
