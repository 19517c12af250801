// Package pipeline wires the fetch stage, the worker pool and the reporter
// together with bounded channels.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"email-digest/internal/ledger"
	"email-digest/internal/model"
	"email-digest/internal/repository"
	"email-digest/internal/retry"
	"email-digest/internal/service"
)

var (
	ErrStopped        = errors.New("pipeline is not accepting work")
	ErrNotFailed      = errors.New("thread is not in failed state")
	ErrThreadNotFound = errors.New("thread not found at the mail source")
)

type Options struct {
	Workers      int
	PollInterval time.Duration
	MaxBatch     int
	// QueueSize bounds both channels. Zero means twice the worker count.
	QueueSize int
	// MaxPolls stops the fetch stage after that many polls. Zero polls forever.
	MaxPolls int
	// Cutoff is the startup timestamp threads must be newer than. Zero means now.
	Cutoff time.Time
	Retry  retry.Policy
}

// Processor enriches one thread. service.Enricher is the production one.
type Processor interface {
	Process(ctx context.Context, thread model.RawThread) model.Outcome
}

// job is one queued thread. Resubmitted threads still carry their failed
// record, which the worker clears once it owns the thread.
type job struct {
	thread   model.RawThread
	resubmit bool
}

type Orchestrator struct {
	opts       Options
	source     service.ThreadSource
	threadRepo repository.ThreadRepository
	processor  Processor
	reporter   *Reporter
	ledger     *ledger.Ledger
	fetcher    *Fetcher
	logger     *slog.Logger

	resubmits chan model.RawThread
	stopped   chan struct{}
	running   sync.Once
}

func New(
	opts Options,
	source service.ThreadSource,
	threadRepo repository.ThreadRepository,
	processor Processor,
	reporter *Reporter,
	logger *slog.Logger,
) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 2 * opts.Workers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Cutoff.IsZero() {
		opts.Cutoff = time.Now()
	}

	l := ledger.New(opts.Cutoff)
	return &Orchestrator{
		opts:       opts,
		source:     source,
		threadRepo: threadRepo,
		processor:  processor,
		reporter:   reporter,
		ledger:     l,
		fetcher:    NewFetcher(source, l, opts.MaxBatch, opts.Retry, logger),
		logger:     logger.With("component", "pipeline"),
		resubmits:  make(chan model.RawThread),
		stopped:    make(chan struct{}),
	}
}

func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// Run starts one fetch task, the worker pool and the reporter, and blocks
// until all of them are done. Cancelling ctx stops admission of new work;
// threads already queued or in flight are finished and reported first.
func (o *Orchestrator) Run(ctx context.Context) error {
	work := make(chan job, o.opts.QueueSize)
	results := make(chan model.Outcome, o.opts.QueueSize)
	// Enrichment calls are short lived and run to completion on shutdown.
	workCtx := context.WithoutCancel(ctx)

	o.logger.Info("Starting pipeline",
		"workers", o.opts.Workers,
		"poll_interval", o.opts.PollInterval.String(),
		"max_batch", o.opts.MaxBatch,
		"cutoff", o.opts.Cutoff.Format(time.RFC3339),
	)

	var g errgroup.Group
	g.Go(func() error {
		defer close(work)
		defer o.stop()
		o.fetchLoop(ctx, work)
		return nil
	})

	var workers sync.WaitGroup
	for i := 0; i < o.opts.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			o.work(workCtx, i+1, work, results)
			return nil
		})
	}

	g.Go(func() error {
		workers.Wait()
		close(results)
		return nil
	})

	g.Go(func() error {
		return o.reporter.Run(results)
	})

	err := g.Wait()
	o.logger.Info("Pipeline stopped", "admitted", o.ledger.Len())
	return err
}

func (o *Orchestrator) fetchLoop(ctx context.Context, work chan<- job) {
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for polls := 0; ; {
		threads, err := o.fetcher.PollOnce(ctx)
		if err != nil && ctx.Err() == nil {
			o.logger.Error("Poll failed", "error", err)
		}
		for _, thread := range threads {
			if !o.push(ctx, work, job{thread: thread}) {
				return
			}
		}

		polls++
		if o.opts.MaxPolls > 0 && polls >= o.opts.MaxPolls {
			o.logger.Info("Reached poll limit", "polls", polls)
			return
		}

		if !o.wait(ctx, work, ticker.C) {
			return
		}
	}
}

// wait blocks until the next tick while forwarding manual resubmissions.
func (o *Orchestrator) wait(ctx context.Context, work chan<- job, tick <-chan time.Time) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-tick:
			return true
		case thread := <-o.resubmits:
			if !o.push(ctx, work, job{thread: thread, resubmit: true}) {
				return false
			}
		}
	}
}

// push blocks while the work queue is full.
func (o *Orchestrator) push(ctx context.Context, work chan<- job, j job) bool {
	select {
	case work <- j:
		return true
	case <-ctx.Done():
		o.logger.Info("Shutdown before thread was queued", "thread_id", j.thread.ID, "resubmit", j.resubmit)
		return false
	}
}

func (o *Orchestrator) work(ctx context.Context, id int, work <-chan job, results chan<- model.Outcome) {
	log := o.logger.With("worker", id)
	log.Debug("Worker started")

	for j := range work {
		if j.resubmit {
			if err := o.clearFailed(ctx, j.thread.ID); err != nil {
				log.Error("Failed to clear failed record", "thread_id", j.thread.ID, "error", err)
				results <- model.Outcome{
					ThreadID:      j.thread.ID,
					Status:        model.OutcomeFailed,
					FailureReason: err.Error(),
				}
				continue
			}
		}
		results <- o.processor.Process(ctx, j.thread)
	}
	log.Debug("Worker drained")
}

// clearFailed removes the failed record of a resubmitted thread so the
// enrichment starts from a fresh pending record. A record that is no longer
// failed is left alone and the processor reports the thread as a duplicate.
func (o *Orchestrator) clearFailed(ctx context.Context, threadID string) error {
	rec, err := o.threadRepo.FindByThreadID(ctx, threadID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load thread record: %w", err)
	case rec.Status != model.StatusFailed:
		return nil
	}
	if err := o.threadRepo.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("failed to delete failed record: %w", err)
	}
	return nil
}

func (o *Orchestrator) stop() {
	o.running.Do(func() { close(o.stopped) })
}

// Resubmit re-queues a failed thread. The failed record stays in place until
// a worker picks the thread up, so a handoff that fails leaves it untouched.
// Threads never recorded are accepted as well.
func (o *Orchestrator) Resubmit(ctx context.Context, threadID string) (model.RawThread, error) {
	select {
	case <-o.stopped:
		return model.RawThread{}, ErrStopped
	default:
	}

	lookup, err := o.source.FetchThread(ctx, threadID)
	if err != nil {
		return model.RawThread{}, fmt.Errorf("failed to fetch thread: %w", err)
	}
	if lookup.Kind == model.LookupMissing {
		return model.RawThread{}, ErrThreadNotFound
	}
	thread := lookup.Thread

	rec, err := o.threadRepo.FindByThreadID(ctx, thread.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return model.RawThread{}, fmt.Errorf("failed to load thread record: %w", err)
	case rec.Status != model.StatusFailed:
		return model.RawThread{}, fmt.Errorf("%w: %s", ErrNotFailed, rec.Status)
	}

	// Keep the fetch stage from admitting the same thread concurrently.
	o.ledger.MarkSeen(thread.ID)

	select {
	case o.resubmits <- thread:
		o.logger.Info("Thread resubmitted", "thread_id", thread.ID, "lookup", lookup.Kind.String())
		return thread, nil
	case <-o.stopped:
		o.ledger.Forget(thread.ID)
		return model.RawThread{}, ErrStopped
	case <-ctx.Done():
		o.ledger.Forget(thread.ID)
		return model.RawThread{}, ctx.Err()
	}
}
