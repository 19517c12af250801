package ai

import (
	"context"
	"sync"

	"email-digest/internal/model"
)

// MockAIClient is a mock implementation of the AI capabilities for testing.
// It records every input it receives and is safe for concurrent use.
type MockAIClient struct {
	SummarizeFunc          func(ctx context.Context, text string) (string, error)
	ClassifyFunc           func(ctx context.Context, text string, labels []string) (string, error)
	ExtractSignatureFunc   func(ctx context.Context, text string) (model.SignatureFields, error)
	ClassifyImportanceFunc func(ctx context.Context, in model.ImportanceInput) (string, error)

	mu               sync.Mutex
	SummarizeInputs  []string
	ClassifyInputs   []string
	SignatureInputs  []string
	ImportanceInputs []model.ImportanceInput
}

func NewMockAIClient() *MockAIClient {
	return &MockAIClient{}
}

func (m *MockAIClient) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.SummarizeInputs = append(m.SummarizeInputs, text)
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	return "This is a test summary.", nil
}

func (m *MockAIClient) Classify(ctx context.Context, text string, labels []string) (string, error) {
	m.mu.Lock()
	m.ClassifyInputs = append(m.ClassifyInputs, text)
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text, labels)
	}
	if len(labels) > 0 {
		return labels[0], nil
	}
	return "", nil
}

func (m *MockAIClient) ExtractSignature(ctx context.Context, text string) (model.SignatureFields, error) {
	m.mu.Lock()
	m.SignatureInputs = append(m.SignatureInputs, text)
	m.mu.Unlock()

	if m.ExtractSignatureFunc != nil {
		return m.ExtractSignatureFunc(ctx, text)
	}
	return model.EmptySignature(), nil
}

func (m *MockAIClient) ClassifyImportance(ctx context.Context, in model.ImportanceInput) (string, error) {
	m.mu.Lock()
	m.ImportanceInputs = append(m.ImportanceInputs, in)
	m.mu.Unlock()

	if m.ClassifyImportanceFunc != nil {
		return m.ClassifyImportanceFunc(ctx, in)
	}
	return model.ImportanceLow, nil
}

// SummarizeCalls returns how many times Summarize was invoked.
func (m *MockAIClient) SummarizeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SummarizeInputs)
}

// ClassifyCalls returns how many times Classify was invoked.
func (m *MockAIClient) ClassifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ClassifyInputs)
}
