package service

import (
	"context"
	"errors"
	"time"

	"email-digest/internal/model"
)

// ErrNoContent is returned for a thread that carries no messages at all.
var ErrNoContent = errors.New("thread has no messages")

// ThreadSource is the mail provider the pipeline polls.
type ThreadSource interface {
	// ListUnseenThreads returns up to limit unread threads with activity
	// after since. Ordering is not guaranteed.
	ListUnseenThreads(ctx context.Context, limit int, since time.Time) ([]model.RawThread, error)
	// Acknowledge marks one message as read. It is idempotent.
	Acknowledge(ctx context.Context, msg model.RawMessage) error
	// FetchThread resolves id as a thread, or failing that as a single message.
	FetchThread(ctx context.Context, id string) (model.ThreadLookup, error)
}

// Summarizer condenses text. Implementations must not depend on call order.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Classifier picks one of labels for text and returns the raw answer.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (string, error)
}

// SignatureExtractor parses contact fields out of a signature block.
type SignatureExtractor interface {
	ExtractSignature(ctx context.Context, text string) (model.SignatureFields, error)
}

// ImportanceClassifier rates a message HIGHLY or LESS IMPORTANT and returns
// the raw answer.
type ImportanceClassifier interface {
	ClassifyImportance(ctx context.Context, in model.ImportanceInput) (string, error)
}

// AIClient bundles every capability the enrichment stage needs.
type AIClient interface {
	Summarizer
	Classifier
	SignatureExtractor
	ImportanceClassifier
}
