package gmail

import (
	"context"
	"sync"
	"time"

	"email-digest/internal/model"
)

// MockGmailClient is a mock thread source for testing. It records every
// acknowledged message id and is safe for concurrent use.
type MockGmailClient struct {
	ListUnseenThreadsFunc func(ctx context.Context, limit int, since time.Time) ([]model.RawThread, error)
	AcknowledgeFunc       func(ctx context.Context, msg model.RawMessage) error
	FetchThreadFunc       func(ctx context.Context, id string) (model.ThreadLookup, error)

	mu    sync.Mutex
	acked []string
	polls int
}

func NewMockGmailClient() *MockGmailClient {
	return &MockGmailClient{}
}

func (m *MockGmailClient) ListUnseenThreads(ctx context.Context, limit int, since time.Time) ([]model.RawThread, error) {
	m.mu.Lock()
	m.polls++
	m.mu.Unlock()

	if m.ListUnseenThreadsFunc != nil {
		return m.ListUnseenThreadsFunc(ctx, limit, since)
	}

	// Default mock behavior: an empty inbox
	return nil, nil
}

func (m *MockGmailClient) Acknowledge(ctx context.Context, msg model.RawMessage) error {
	m.mu.Lock()
	m.acked = append(m.acked, msg.ID)
	m.mu.Unlock()

	if m.AcknowledgeFunc != nil {
		return m.AcknowledgeFunc(ctx, msg)
	}
	return nil
}

func (m *MockGmailClient) FetchThread(ctx context.Context, id string) (model.ThreadLookup, error) {
	if m.FetchThreadFunc != nil {
		return m.FetchThreadFunc(ctx, id)
	}

	// Default mock behavior: nothing found
	return model.ThreadLookup{Kind: model.LookupMissing}, nil
}

// Acked returns the ids passed to Acknowledge in call order.
func (m *MockGmailClient) Acked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

// Polls returns how many times ListUnseenThreads was called.
func (m *MockGmailClient) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}
