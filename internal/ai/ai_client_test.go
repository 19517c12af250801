package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-digest/internal/logger"
	"email-digest/internal/model"
	"email-digest/internal/retry"
)

func newOpenAIServer(t *testing.T, answer string, captured *chatCompletionRequest) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []choice{{Message: message{Role: "assistant", Content: answer}}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(provider, baseURL string) *Client {
	return NewAIClient(Options{Provider: provider, APIKey: "test-key", BaseURL: baseURL}, logger.Discard())
}

func TestSummarizeOpenAI(t *testing.T) {
	var req chatCompletionRequest
	server := newOpenAIServer(t, "  A short summary.  ", &req)
	client := newTestClient(ProviderOpenAI, server.URL)

	summary, err := client.Summarize(context.Background(), "Mon - alice: hi")

	require.NoError(t, err)
	assert.Equal(t, "A short summary.", summary)
	assert.Equal(t, "gpt-4o", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "Mon - alice: hi")
}

func TestClassifyListsLabels(t *testing.T) {
	var req chatCompletionRequest
	server := newOpenAIServer(t, "Delivery", &req)
	client := newTestClient(ProviderDeepSeek, server.URL)

	label, err := client.Classify(context.Background(), "where is my parcel", model.Categories)

	require.NoError(t, err)
	assert.Equal(t, "Delivery", label)
	assert.Equal(t, "deepseek-chat", req.Model)
	assert.Contains(t, req.Messages[0].Content, "Invoice/Tax")
}

func TestExtractSignatureParsesJSON(t *testing.T) {
	answer := "```json\n{\"name\": \"Alice\", \"company\": \"Acme Inc.\", \"phone\": \"\"}\n```"
	server := newOpenAIServer(t, answer, nil)
	client := newTestClient(ProviderOpenAI, server.URL)

	fields, err := client.ExtractSignature(context.Background(), "Alice\nAcme Inc.")

	require.NoError(t, err)
	assert.Equal(t, "Alice", fields.Name)
	assert.Equal(t, "Acme Inc.", fields.Company)
	assert.Equal(t, model.NotAvailable, fields.Phone)
	assert.Equal(t, model.NotAvailable, fields.JobTitle)
}

func TestExtractSignatureNonJSONFallsBack(t *testing.T) {
	server := newOpenAIServer(t, "I could not find a signature.", nil)
	client := newTestClient(ProviderOpenAI, server.URL)

	fields, err := client.ExtractSignature(context.Background(), "thanks")

	require.NoError(t, err)
	assert.Equal(t, model.EmptySignature(), fields)
}

func TestGeminiProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash-lite:generateContent"))
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "Subject: Invoice")

		_ = json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{Content: geminiContent{Parts: []geminiPart{{Text: "HIGHLY IMPORTANT"}}}}},
		})
	}))
	defer server.Close()
	client := newTestClient(ProviderGemini, server.URL)

	answer, err := client.ClassifyImportance(context.Background(), model.ImportanceInput{Subject: "Invoice"})

	require.NoError(t, err)
	assert.Equal(t, model.ImportanceHigh, answer)
}

func TestGeminiTransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()
	client := newTestClient(ProviderGemini, server.URL)

	_, err := client.Summarize(context.Background(), "hello")

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "test-key")
}

func TestClientErrorsArePermanent(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", int(status.Load()))
	}))
	defer server.Close()
	client := newTestClient(ProviderOpenAI, server.URL)

	calls := 0
	err := retry.Do(context.Background(), retry.Policy{Attempts: 3}, func(ctx context.Context) error {
		calls++
		_, err := client.Summarize(ctx, "x")
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, 1, calls)

	status.Store(http.StatusServiceUnavailable)
	calls = 0
	err = retry.Do(context.Background(), retry.Policy{Attempts: 3}, func(ctx context.Context) error {
		calls++
		_, err := client.Summarize(ctx, "x")
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestNoChoicesIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()
	client := newTestClient(ProviderOpenAI, server.URL)

	_, err := client.Summarize(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
