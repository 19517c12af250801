package repository

import (
	"context"
	"errors"

	"email-digest/internal/model"
)

var ErrNotFound = errors.New("record not found")

// ThreadRepository stores thread lifecycle records. A provider thread id maps
// to at most one record.
type ThreadRepository interface {
	// CreatePending inserts rec unless a record with the same ThreadID exists,
	// in which case it reports created=false and no error.
	CreatePending(ctx context.Context, rec *model.ThreadRecord) (bool, error)
	// Complete moves a pending record to completed with its derived fields.
	Complete(ctx context.Context, threadID, summary, category string) error
	// Fail moves a pending record to failed with reason.
	Fail(ctx context.Context, threadID, reason string) error
	FindByThreadID(ctx context.Context, threadID string) (*model.ThreadRecord, error)
	// List returns records with the given status, or all when status is empty.
	List(ctx context.Context, status model.ThreadStatus) ([]*model.ThreadRecord, error)
	// Delete removes a record and its audit rows.
	Delete(ctx context.Context, threadID string) error
	AddSkipped(ctx context.Context, skipped model.SkippedMessage) error
	ListSkipped(ctx context.Context, threadID string) ([]model.SkippedMessage, error)
}

// ContactRepository stores contacts keyed by normalized email address.
type ContactRepository interface {
	// Upsert creates the contact or overwrites the existing one with the same
	// email. rec is updated with the stored id and timestamps.
	Upsert(ctx context.Context, rec *model.ContactRecord) error
	FindByEmail(ctx context.Context, email string) (*model.ContactRecord, error)
	FindAll(ctx context.Context) ([]*model.ContactRecord, error)
}
