package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"email-digest/internal/model"
	"email-digest/internal/repository"
)

const threadColumns = `id, thread_id, sender, COALESCE(subject, '') AS subject,
	COALESCE(body_plain, '') AS body_plain, COALESCE(body_html, '') AS body_html, status,
	COALESCE(summary, '') AS summary, COALESCE(category, '') AS category,
	COALESCE(failure_reason, '') AS failure_reason, created_at, updated_at`

type ThreadRepository struct {
	db *sqlx.DB
}

func NewThreadRepository(db *sqlx.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

func (r *ThreadRepository) CreatePending(ctx context.Context, rec *model.ThreadRecord) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO threads (id, thread_id, sender, subject, body_plain, body_html, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (thread_id) DO NOTHING`)
	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.ThreadID, rec.Sender, rec.Subject, rec.BodyPlain, rec.BodyHTML,
		model.StatusPending, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create thread record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *ThreadRepository) Complete(ctx context.Context, threadID, summary, category string) error {
	query := `UPDATE threads SET status = ?, summary = ?, category = ?, updated_at = ?
		WHERE thread_id = ? AND status = ?`
	return r.transition(ctx, threadID, query,
		model.StatusCompleted, summary, category, time.Now().UTC(), threadID, model.StatusPending)
}

func (r *ThreadRepository) Fail(ctx context.Context, threadID, reason string) error {
	query := `UPDATE threads SET status = ?, failure_reason = ?, updated_at = ?
		WHERE thread_id = ? AND status = ?`
	return r.transition(ctx, threadID, query,
		model.StatusFailed, reason, time.Now().UTC(), threadID, model.StatusPending)
}

// transition runs a guarded status update in one transaction and explains
// why nothing changed when the guard did not match.
func (r *ThreadRepository) transition(ctx context.Context, threadID, query string, args ...any) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update thread %s: %w", threadID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var status model.ThreadStatus
		err := tx.GetContext(ctx, &status, tx.Rebind(`SELECT status FROM threads WHERE thread_id = ?`), threadID)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read thread %s: %w", threadID, err)
		}
		return fmt.Errorf("thread %s is %s, not pending", threadID, status)
	}

	return tx.Commit()
}

func (r *ThreadRepository) FindByThreadID(ctx context.Context, threadID string) (*model.ThreadRecord, error) {
	rec := &model.ThreadRecord{}
	query := r.db.Rebind(`SELECT ` + threadColumns + ` FROM threads WHERE thread_id = ?`)
	err := r.db.GetContext(ctx, rec, query, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return rec, nil
}

func (r *ThreadRepository) List(ctx context.Context, status model.ThreadStatus) ([]*model.ThreadRecord, error) {
	var records []*model.ThreadRecord
	var err error
	if status == "" {
		err = r.db.SelectContext(ctx, &records, `SELECT `+threadColumns+` FROM threads ORDER BY created_at`)
	} else {
		query := r.db.Rebind(`SELECT ` + threadColumns + ` FROM threads WHERE status = ? ORDER BY created_at`)
		err = r.db.SelectContext(ctx, &records, query, status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return records, nil
}

func (r *ThreadRepository) Delete(ctx context.Context, threadID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM skipped_messages WHERE thread_id = ?`), threadID); err != nil {
		return fmt.Errorf("failed to delete skipped messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM threads WHERE thread_id = ?`), threadID); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return tx.Commit()
}

func (r *ThreadRepository) AddSkipped(ctx context.Context, skipped model.SkippedMessage) error {
	query := r.db.Rebind(`
		INSERT INTO skipped_messages (id, thread_id, message_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		skipped.ID, skipped.ThreadID, skipped.MessageID, skipped.Reason, skipped.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record skipped message: %w", err)
	}
	return nil
}

func (r *ThreadRepository) ListSkipped(ctx context.Context, threadID string) ([]model.SkippedMessage, error) {
	var skipped []model.SkippedMessage
	query := r.db.Rebind(`SELECT id, thread_id, message_id, reason, created_at
		FROM skipped_messages WHERE thread_id = ? ORDER BY created_at`)
	if err := r.db.SelectContext(ctx, &skipped, query, threadID); err != nil {
		return nil, fmt.Errorf("failed to list skipped messages: %w", err)
	}
	return skipped, nil
}

const contactColumns = `id, email, name, company, address, phone, job_title, importance, created_at, updated_at`

type ContactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Upsert(ctx context.Context, rec *model.ContactRecord) error {
	rec.Email = model.NormalizeEmail(rec.Email)
	rec.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		INSERT INTO contacts (id, email, name, company, address, phone, job_title, importance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			name = excluded.name,
			company = excluded.company,
			address = excluded.address,
			phone = excluded.phone,
			job_title = excluded.job_title,
			importance = excluded.importance,
			updated_at = excluded.updated_at`)
	_, err = tx.ExecContext(ctx, query,
		rec.ID, rec.Email, rec.Name, rec.Company, rec.Address, rec.Phone, rec.JobTitle,
		rec.Importance, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}

	var stored struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err = tx.GetContext(ctx, &stored, tx.Rebind(`SELECT id, created_at FROM contacts WHERE email = ?`), rec.Email)
	if err != nil {
		return fmt.Errorf("failed to read upserted contact: %w", err)
	}
	rec.ID = stored.ID
	rec.CreatedAt = stored.CreatedAt

	return tx.Commit()
}

func (r *ContactRepository) FindByEmail(ctx context.Context, email string) (*model.ContactRecord, error) {
	rec := &model.ContactRecord{}
	query := r.db.Rebind(`SELECT ` + contactColumns + ` FROM contacts WHERE email = ?`)
	err := r.db.GetContext(ctx, rec, query, model.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return rec, nil
}

func (r *ContactRepository) FindAll(ctx context.Context) ([]*model.ContactRecord, error) {
	var contacts []*model.ContactRecord
	if err := r.db.SelectContext(ctx, &contacts, `SELECT `+contactColumns+` FROM contacts ORDER BY email`); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}
