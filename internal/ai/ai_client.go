package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"email-digest/internal/model"
	"email-digest/internal/retry"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
)

type Options struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint.
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to a chat-completion style LLM API and implements the
// summarizer, classifier and signature extraction capabilities.
type Client struct {
	provider   string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAIClient(opts Options, logger *slog.Logger) *Client {
	provider := strings.ToLower(opts.Provider)
	if provider == "" {
		provider = ProviderOpenAI
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = getBaseURL(provider)
	}
	modelName := opts.Model
	if modelName == "" {
		modelName = getModel(provider)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		provider:   provider,
		apiKey:     opts.APIKey,
		model:      modelName,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With("component", "ai", "provider", provider),
	}
}

// getBaseURL returns the appropriate API base URL based on the provider
func getBaseURL(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return "https://api.deepseek.com"
	case ProviderGemini:
		return "https://generativelanguage.googleapis.com/v1beta"
	default:
		return "https://api.openai.com/v1"
	}
}

// getModel returns the appropriate model based on the provider
func getModel(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return "deepseek-chat"
	case ProviderGemini:
		return "gemini-2.0-flash-lite"
	default:
		return "gpt-4o"
	}
}

// OpenAI/DeepSeek API request/response structures
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Gemini API request/response structures
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type completion struct {
	system      string
	user        string
	temperature float64
	maxTokens   int
}

// Summarize condenses an email thread, or a list of partial summaries, into
// one summary.
func (a *Client) Summarize(ctx context.Context, text string) (string, error) {
	summary, err := a.complete(ctx, completion{
		system:      summarizeSystemPrompt,
		user:        fmt.Sprintf("%s\n\nSummary:", text),
		temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize thread: %w", err)
	}

	a.logger.Debug("summarized thread", "input_chars", len(text), "summary_chars", len(summary))
	return summary, nil
}

// Classify asks the model for one of labels. The raw answer is returned.
func (a *Client) Classify(ctx context.Context, text string, labels []string) (string, error) {
	prompt := fmt.Sprintf(`Please classify the following content into exactly one of these categories:
%s

Content:
%s

Respond with the single category name only.`, strings.Join(labels, ", "), text)

	label, err := a.complete(ctx, completion{user: prompt, temperature: 0})
	if err != nil {
		return "", fmt.Errorf("failed to classify thread: %w", err)
	}

	a.logger.Debug("classified thread", "label", label)
	return label, nil
}

// ExtractSignature parses contact fields out of a signature block. Fields the
// model does not return, or an answer that is not JSON, become N/A.
func (a *Client) ExtractSignature(ctx context.Context, text string) (model.SignatureFields, error) {
	answer, err := a.complete(ctx, completion{
		system:      signatureSystemPrompt,
		user:        fmt.Sprintf("Signature text:\n```\n%s\n```", text),
		temperature: 0,
	})
	if err != nil {
		return model.SignatureFields{}, fmt.Errorf("failed to extract signature: %w", err)
	}

	return parseSignatureJSON(answer), nil
}

// ClassifyImportance asks whether a message is HIGHLY or LESS IMPORTANT. The
// raw answer is returned.
func (a *Client) ClassifyImportance(ctx context.Context, in model.ImportanceInput) (string, error) {
	prompt := fmt.Sprintf("Sender: %s\nSubject: %s\nTo: %s\nCc: %s\n\nBody:\n```\n%s\n```",
		in.Sender, in.Subject, in.To, in.Cc, in.Body)

	answer, err := a.complete(ctx, completion{
		system:      importanceSystemPrompt,
		user:        prompt,
		temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to classify importance: %w", err)
	}
	return answer, nil
}

func parseSignatureJSON(answer string) model.SignatureFields {
	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")

	var fields model.SignatureFields
	if err := json.Unmarshal([]byte(strings.TrimSpace(answer)), &fields); err != nil {
		return model.EmptySignature()
	}
	return fields.Normalize()
}

func (a *Client) complete(ctx context.Context, c completion) (string, error) {
	switch a.provider {
	case ProviderGemini:
		return a.completeWithGemini(ctx, c)
	default:
		return a.completeWithOpenAIStyle(ctx, c)
	}
}

func (a *Client) completeWithOpenAIStyle(ctx context.Context, c completion) (string, error) {
	var messages []message
	if c.system != "" {
		messages = append(messages, message{Role: "system", Content: c.system})
	}
	messages = append(messages, message{Role: "user", Content: c.user})

	request := chatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	var resp chatCompletionResponse
	if err := a.post(ctx, a.baseURL+"/chat/completions", request, &resp, "Authorization", "Bearer "+a.apiKey); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from AI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (a *Client) completeWithGemini(ctx context.Context, c completion) (string, error) {
	request := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: c.user}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		},
	}
	if c.system != "" {
		request.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: c.system}}}
	}

	// The key goes in a header so it never shows up in a *url.Error.
	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, a.model)
	var resp geminiResponse
	if err := a.post(ctx, url, request, &resp, "x-goog-api-key", a.apiKey); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content parts in Gemini response")
	}

	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

// post sends a JSON request and decodes the JSON response into out. Client
// errors other than 429 are permanent; everything else may be retried.
func (a *Client) post(ctx context.Context, url string, payload, out any, authHeader, authValue string) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if authValue != "" {
		req.Header.Set(authHeader, authValue)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
