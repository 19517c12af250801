package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-digest/internal/ai"
	"email-digest/internal/gmail"
	"email-digest/internal/logger"
	"email-digest/internal/model"
	"email-digest/internal/repository/memory"
)

type enricherFixture struct {
	enricher *Enricher
	ai       *ai.MockAIClient
	source   *gmail.MockGmailClient
	threads  *memory.InMemoryThreadRepository
	contacts *memory.InMemoryContactRepository
}

func newEnricherFixture() *enricherFixture {
	log := logger.Discard()
	f := &enricherFixture{
		ai:       ai.NewMockAIClient(),
		source:   gmail.NewMockGmailClient(),
		threads:  memory.NewInMemoryThreadRepository(),
		contacts: memory.NewInMemoryContactRepository(),
	}
	f.enricher = NewEnricher(
		f.threads,
		f.source,
		NewThreadSummarizer(f.ai, 8000, testPolicy, log),
		NewThreadClassifier(f.ai, testPolicy, log),
		NewContactService(f.ai, f.ai, f.contacts, 2000, testPolicy, log),
		"bob@example.com",
		testPolicy,
		log,
	)
	return f
}

func aliceThread() model.RawThread {
	return model.RawThread{
		ID: "t-alice",
		Messages: []model.RawMessage{{
			ID:      "m-1",
			Sender:  "Alice <alice@example.com>",
			Date:    "Mon, 1 Jan 2025 10:00:00 -0800",
			Subject: "Hello",
			Plain:   "Hi there",
		}},
	}
}

func TestProcessSingleMessageThread(t *testing.T) {
	f := newEnricherFixture()
	ctx := context.Background()

	outcome := f.enricher.Process(ctx, aliceThread())

	assert.Equal(t, model.OutcomeCompleted, outcome.Status)
	assert.Empty(t, outcome.Replies)
	assert.Equal(t, "This is a test summary.", outcome.Summary)
	assert.Equal(t, model.CategoryQuotation, outcome.Category)
	require.Len(t, f.ai.SummarizeInputs, 1)
	assert.Equal(t, "Mon, 1 Jan 2025 10:00:00 -0800 - Alice <alice@example.com>: Hi there", f.ai.SummarizeInputs[0])

	rec, err := f.threads.FindByThreadID(ctx, "t-alice")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, rec.Status)
	assert.Equal(t, outcome.Summary, rec.Summary)

	require.NotNil(t, outcome.Contact)
	assert.Equal(t, "alice@example.com", outcome.Contact.Email)
	assert.Equal(t, []string{"m-1"}, f.source.Acked())
}

func TestProcessDuplicateIsNoOp(t *testing.T) {
	f := newEnricherFixture()
	ctx := context.Background()

	first := f.enricher.Process(ctx, aliceThread())
	second := f.enricher.Process(ctx, aliceThread())

	assert.Equal(t, model.OutcomeCompleted, first.Status)
	assert.Equal(t, model.OutcomeDuplicate, second.Status)
	assert.Equal(t, 1, f.ai.SummarizeCalls())

	records, err := f.threads.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, []string{"m-1", "m-1"}, f.source.Acked(), "duplicates are acknowledged too")
}

func TestProcessRecordsSkippedMessages(t *testing.T) {
	f := newEnricherFixture()
	ctx := context.Background()
	thread := aliceThread()
	thread.Messages = append(thread.Messages, model.RawMessage{ID: "m-2", Sender: "bob@example.com"})

	outcome := f.enricher.Process(ctx, thread)

	assert.Equal(t, model.OutcomeCompleted, outcome.Status)
	assert.Equal(t, 1, outcome.Skipped)
	skipped, err := f.threads.ListSkipped(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "m-2", skipped[0].MessageID)
	assert.Equal(t, "no content", skipped[0].Reason)

	// the contact comes from the last usable message
	assert.Equal(t, "alice@example.com", outcome.Contact.Email)
	assert.Equal(t, []string{"m-1", "m-2"}, f.source.Acked())
}

func TestProcessComputesReplyTimes(t *testing.T) {
	f := newEnricherFixture()
	thread := aliceThread()
	thread.Messages = append(thread.Messages, model.RawMessage{
		ID:     "m-2",
		Sender: "Bob <bob@example.com>",
		Date:   "Mon, 1 Jan 2025 12:30:00 -0800",
		Plain:  "Sure thing",
	})

	outcome := f.enricher.Process(context.Background(), thread)

	require.Len(t, outcome.Replies, 1)
	assert.Equal(t, "alice@example.com", outcome.Replies[0].From)
	assert.Equal(t, 150*time.Minute, outcome.Replies[0].Delta)
	assert.Equal(t, "bob@example.com", outcome.Contact.Email)
}

func TestProcessFailureIsRecorded(t *testing.T) {
	f := newEnricherFixture()
	ctx := context.Background()
	f.ai.SummarizeFunc = func(ctx context.Context, text string) (string, error) {
		return "", errors.New("model overloaded")
	}

	outcome := f.enricher.Process(ctx, aliceThread())

	assert.Equal(t, model.OutcomeFailed, outcome.Status)
	assert.Equal(t, "failed to summarize thread: model overloaded", outcome.FailureReason)

	rec, err := f.threads.FindByThreadID(ctx, "t-alice")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Equal(t, outcome.FailureReason, rec.FailureReason)
	assert.Equal(t, []string{"m-1"}, f.source.Acked())

	// failed threads are not retried automatically
	again := f.enricher.Process(ctx, aliceThread())
	assert.Equal(t, model.OutcomeDuplicate, again.Status)
}

func TestProcessRecoversFromPanics(t *testing.T) {
	f := newEnricherFixture()
	f.ai.ClassifyFunc = func(ctx context.Context, text string, labels []string) (string, error) {
		panic("nil map")
	}

	outcome := f.enricher.Process(context.Background(), aliceThread())

	assert.Equal(t, model.OutcomeFailed, outcome.Status)
	assert.Contains(t, outcome.FailureReason, "nil map")
}

func TestProcessEmptyThreadFails(t *testing.T) {
	f := newEnricherFixture()

	outcome := f.enricher.Process(context.Background(), model.RawThread{ID: "t-empty"})

	assert.Equal(t, model.OutcomeFailed, outcome.Status)
	assert.Equal(t, ErrNoContent.Error(), outcome.FailureReason)
}

func TestProcessAllInvalidThreadCompletesEmpty(t *testing.T) {
	f := newEnricherFixture()
	ctx := context.Background()
	thread := model.RawThread{
		ID: "t-blank",
		Messages: []model.RawMessage{
			{ID: "m-1", Sender: "alice@example.com"},
			{ID: "m-2", Sender: "alice@example.com", Plain: "  "},
		},
	}

	outcome := f.enricher.Process(ctx, thread)

	assert.Equal(t, model.OutcomeCompleted, outcome.Status)
	assert.Empty(t, outcome.Summary)
	assert.Equal(t, model.CategoryOthers, outcome.Category)
	assert.Equal(t, 2, outcome.Skipped)
	assert.Nil(t, outcome.Contact)
	assert.Zero(t, f.ai.SummarizeCalls())
	assert.Zero(t, f.ai.ClassifyCalls())

	rec, err := f.threads.FindByThreadID(ctx, "t-blank")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, rec.Status)
	assert.Equal(t, []string{"m-1", "m-2"}, f.source.Acked())
}

func TestProcessSwallowsAcknowledgeErrors(t *testing.T) {
	f := newEnricherFixture()
	f.source.AcknowledgeFunc = func(ctx context.Context, msg model.RawMessage) error {
		return errors.New("gmail unavailable")
	}

	outcome := f.enricher.Process(context.Background(), aliceThread())

	assert.Equal(t, model.OutcomeCompleted, outcome.Status)
	assert.Len(t, f.source.Acked(), testPolicy.Attempts)
}
