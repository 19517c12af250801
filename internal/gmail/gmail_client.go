package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"email-digest/internal/model"
)

const (
	user        = "me" // Use 'me' to refer to the authenticated user
	labelUnread = "UNREAD"
)

// Client is a Gmail backed thread source.
type Client struct {
	srv    *gmail.Service
	logger *slog.Logger
}

// NewGmailClient authenticates with a stored OAuth token. With a readable
// credentials file the token is refreshed automatically, otherwise it is used
// as is until it expires.
func NewGmailClient(ctx context.Context, tokenFile, credentialsFile string, logger *slog.Logger) (*Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read gmail token: %w", err)
	}

	srv, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource(ctx, tok, credentialsFile, logger)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return NewWithService(srv, logger), nil
}

// NewWithService wraps an already configured Gmail service.
func NewWithService(srv *gmail.Service, logger *slog.Logger) *Client {
	return &Client{
		srv:    srv,
		logger: logger.With("component", "gmail"),
	}
}

func tokenSource(ctx context.Context, tok *oauth2.Token, credentialsFile string, logger *slog.Logger) oauth2.TokenSource {
	if credentialsFile != "" {
		b, err := os.ReadFile(credentialsFile)
		if err == nil {
			cfg, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
			if err == nil {
				return cfg.TokenSource(ctx, tok)
			}
			logger.Warn("Ignoring unparseable gmail credentials file", "path", credentialsFile, "error", err)
		}
	}
	return oauth2.StaticTokenSource(tok)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// ListUnseenThreads lists unread threads with activity after since and loads
// each of them in full. Threads that fail to load are skipped.
func (g *Client) ListUnseenThreads(ctx context.Context, limit int, since time.Time) ([]model.RawThread, error) {
	call := g.srv.Users.Threads.List(user).
		Q(fmt.Sprintf("is:unread after:%d", since.Unix())).
		Context(ctx)
	if limit > 0 {
		call = call.MaxResults(int64(limit))
	}

	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list unread threads: %w", err)
	}

	threads := make([]model.RawThread, 0, len(list.Threads))
	for _, t := range list.Threads {
		full, err := g.srv.Users.Threads.Get(user, t.Id).Format("full").Context(ctx).Do()
		if err != nil {
			g.logger.Error("Failed to get thread", "thread_id", t.Id, "error", err)
			continue
		}
		threads = append(threads, g.convertThread(full))
	}

	g.logger.Debug("Fetched unread threads", "count", len(threads))
	return threads, nil
}

// FetchThread resolves id as a thread first. Only when Gmail reports the
// thread as not found is id retried as a single message id.
func (g *Client) FetchThread(ctx context.Context, id string) (model.ThreadLookup, error) {
	thread, err := g.srv.Users.Threads.Get(user, id).Format("full").Context(ctx).Do()
	if err == nil {
		return model.ThreadLookup{Kind: model.LookupThread, Thread: g.convertThread(thread)}, nil
	}
	if !isNotFound(err) {
		return model.ThreadLookup{}, fmt.Errorf("failed to get thread %s: %w", id, err)
	}

	msg, err := g.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return model.ThreadLookup{Kind: model.LookupMissing}, nil
		}
		return model.ThreadLookup{}, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	threadID := msg.ThreadId
	if threadID == "" {
		threadID = msg.Id
	}
	return model.ThreadLookup{
		Kind: model.LookupMessage,
		Thread: model.RawThread{
			ID:       threadID,
			Messages: []model.RawMessage{g.convertMessage(msg)},
		},
	}, nil
}

// Acknowledge removes the UNREAD label from the message.
func (g *Client) Acknowledge(ctx context.Context, msg model.RawMessage) error {
	modifyRequest := &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{labelUnread},
	}

	if _, err := g.srv.Users.Messages.Modify(user, msg.ID, modifyRequest).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}

	g.logger.Debug("Marked message as read", "message_id", msg.ID)
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func (g *Client) convertThread(t *gmail.Thread) model.RawThread {
	thread := model.RawThread{ID: t.Id, Messages: make([]model.RawMessage, 0, len(t.Messages))}
	for _, msg := range t.Messages {
		thread.Messages = append(thread.Messages, g.convertMessage(msg))
	}
	return thread
}

func (g *Client) convertMessage(msg *gmail.Message) model.RawMessage {
	raw := model.RawMessage{ID: msg.Id}
	if msg.Payload == nil {
		return raw
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			raw.Subject = header.Value
		case "from":
			raw.Sender = header.Value
		case "to":
			raw.To = header.Value
		case "cc":
			raw.Cc = header.Value
		case "date":
			raw.Date = header.Value
		}
	}
	if raw.Date == "" && msg.InternalDate > 0 {
		raw.Date = time.UnixMilli(msg.InternalDate).UTC().Format(time.RFC1123Z)
	}

	raw.Plain, raw.HTML = g.extractBodies(msg.Payload)
	return raw
}

// extractBodies walks the MIME tree and returns the first text/plain and the
// first text/html part. Attachments are ignored.
func (g *Client) extractBodies(part *gmail.MessagePart) (plain, html string) {
	if part == nil {
		return "", ""
	}

	if part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		switch {
		case strings.HasPrefix(part.MimeType, "text/plain"):
			plain = g.decode(part.Body.Data)
		case strings.HasPrefix(part.MimeType, "text/html"):
			html = g.decode(part.Body.Data)
		}
	}

	for _, child := range part.Parts {
		childPlain, childHTML := g.extractBodies(child)
		if plain == "" {
			plain = childPlain
		}
		if html == "" {
			html = childHTML
		}
	}
	return plain, html
}

func (g *Client) decode(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
	}
	if err != nil {
		g.logger.Error("Failed to decode message body", "error", err)
		return ""
	}
	return string(decoded)
}
