package service

import (
	"context"
	"fmt"
	"log/slog"

	"email-digest/internal/model"
	"email-digest/internal/parser"
	"email-digest/internal/replytime"
	"email-digest/internal/repository"
	"email-digest/internal/retry"
)

// Enricher runs the per-thread enrichment sequence for one RawThread. It
// holds no per-thread state and is shared by every worker.
type Enricher struct {
	threadRepo repository.ThreadRepository
	source     ThreadSource
	summarizer *ThreadSummarizer
	classifier *ThreadClassifier
	contacts   *ContactService
	operator   string
	policy     retry.Policy
	logger     *slog.Logger
}

func NewEnricher(
	threadRepo repository.ThreadRepository,
	source ThreadSource,
	summarizer *ThreadSummarizer,
	classifier *ThreadClassifier,
	contacts *ContactService,
	operator string,
	policy retry.Policy,
	logger *slog.Logger,
) *Enricher {
	return &Enricher{
		threadRepo: threadRepo,
		source:     source,
		summarizer: summarizer,
		classifier: classifier,
		contacts:   contacts,
		operator:   operator,
		policy:     policy,
		logger:     logger.With("component", "enricher"),
	}
}

// Process enriches thread and records the outcome. A thread whose record
// already exists is reported as a duplicate and left untouched. Every
// message is acknowledged to the source whatever the outcome.
func (e *Enricher) Process(ctx context.Context, thread model.RawThread) model.Outcome {
	log := e.logger.With("thread_id", thread.ID)
	defer e.acknowledgeAll(ctx, thread, log)

	outcome := model.Outcome{ThreadID: thread.ID}

	created, err := e.threadRepo.CreatePending(ctx, model.NewThreadRecord(thread))
	if err != nil {
		log.Error("Failed to create thread record", "error", err)
		outcome.Status = model.OutcomeFailed
		outcome.FailureReason = fmt.Sprintf("failed to create thread record: %v", err)
		return outcome
	}
	if !created {
		log.Info("Thread already processed, skipping")
		outcome.Status = model.OutcomeDuplicate
		return outcome
	}

	if err := e.enrich(ctx, thread, &outcome); err != nil {
		return e.fail(ctx, outcome, err, log)
	}

	if err := e.threadRepo.Complete(ctx, thread.ID, outcome.Summary, outcome.Category); err != nil {
		return e.fail(ctx, outcome, fmt.Errorf("failed to complete thread record: %w", err), log)
	}

	outcome.Status = model.OutcomeCompleted
	log.Info("Thread enriched", "category", outcome.Category, "replies", len(outcome.Replies), "skipped", outcome.Skipped)
	return outcome
}

func (e *Enricher) enrich(ctx context.Context, thread model.RawThread, outcome *model.Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during enrichment: %v", r)
		}
	}()

	if len(thread.Messages) == 0 {
		return ErrNoContent
	}

	valid, invalid := parser.ParseAll(thread.Messages)
	for _, msg := range invalid {
		skipped := model.NewSkippedMessage(thread.ID, msg.ID, msg.ValidationError)
		if err := e.threadRepo.AddSkipped(ctx, skipped); err != nil {
			return fmt.Errorf("failed to record skipped message %s: %w", msg.ID, err)
		}
	}
	outcome.Skipped = len(invalid)

	outcome.Replies = replytime.Compute(valid, e.operator)

	summary, err := e.summarizer.Summarize(ctx, valid)
	if err != nil {
		return fmt.Errorf("failed to summarize thread: %w", err)
	}
	outcome.Summary = summary

	category, err := e.classifier.Classify(ctx, summary)
	if err != nil {
		return fmt.Errorf("failed to classify thread: %w", err)
	}
	outcome.Category = category

	if len(valid) > 0 {
		contact, err := e.contacts.Upsert(ctx, valid[len(valid)-1])
		if err != nil {
			return fmt.Errorf("failed to derive contact: %w", err)
		}
		outcome.Contact = contact
	}
	return nil
}

func (e *Enricher) fail(ctx context.Context, outcome model.Outcome, cause error, log *slog.Logger) model.Outcome {
	reason := cause.Error()
	log.Error("Thread enrichment failed", "error", reason)

	if err := e.threadRepo.Fail(ctx, outcome.ThreadID, reason); err != nil {
		log.Error("Failed to mark thread as failed", "error", err)
	}

	outcome.Status = model.OutcomeFailed
	outcome.FailureReason = reason
	return outcome
}

func (e *Enricher) acknowledgeAll(ctx context.Context, thread model.RawThread, log *slog.Logger) {
	for _, msg := range thread.Messages {
		err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
			return e.source.Acknowledge(ctx, msg)
		})
		if err != nil {
			// Redelivery is caught by the ledger and the record uniqueness.
			log.Warn("Failed to acknowledge message", "message_id", msg.ID, "error", err)
		}
	}
}
