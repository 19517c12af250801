package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"email-digest/internal/ledger"
	"email-digest/internal/model"
	"email-digest/internal/parser"
	"email-digest/internal/retry"
	"email-digest/internal/service"
)

// Fetcher polls the thread source and admits threads that are newer than the
// ledger cutoff and not yet seen in this run.
type Fetcher struct {
	source   service.ThreadSource
	ledger   *ledger.Ledger
	maxBatch int
	policy   retry.Policy
	logger   *slog.Logger
}

func NewFetcher(source service.ThreadSource, ledger *ledger.Ledger, maxBatch int, policy retry.Policy, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:   source,
		ledger:   ledger,
		maxBatch: maxBatch,
		policy:   policy,
		logger:   logger.With("component", "fetcher"),
	}
}

// PollOnce requests up to maxBatch unread threads. Admitted ids are recorded
// in the ledger before the threads are returned.
func (f *Fetcher) PollOnce(ctx context.Context) ([]model.RawThread, error) {
	cutoff := f.ledger.Cutoff()
	threads, err := retry.Value(ctx, f.policy, func(ctx context.Context) ([]model.RawThread, error) {
		return f.source.ListUnseenThreads(ctx, f.maxBatch, cutoff)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unseen threads: %w", err)
	}

	var admitted []model.RawThread
	for _, thread := range threads {
		last, ok := thread.Last()
		if !ok {
			f.logger.Warn("Discarding thread without messages", "thread_id", thread.ID)
			continue
		}

		at, err := parser.ParseDate(last.Date)
		if err != nil {
			f.logger.Warn("Discarding thread with unparseable date", "thread_id", thread.ID, "date", last.Date, "error", err)
			continue
		}
		if !at.After(cutoff) {
			continue
		}
		if !f.ledger.Admit(thread.ID) {
			continue
		}
		admitted = append(admitted, thread)
	}

	f.logger.Debug("Polled thread source", "listed", len(threads), "admitted", len(admitted))
	return admitted, nil
}
