// Package eml is a thread source backed by a directory of .eml files. It is
// used for offline runs and by the file based commands.
package eml

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"email-digest/internal/model"
	"email-digest/internal/parser"
)

const (
	pendingExt = ".eml"
	readExt    = ".eml.read"
)

// Message is one parsed .eml file plus the headers used for threading.
type Message struct {
	Raw        model.RawMessage
	MessageID  string
	InReplyTo  []string
	References []string
	Date       time.Time
}

// ThreadKey is the root of the reply chain this message belongs to.
func (m Message) ThreadKey() string {
	switch {
	case len(m.References) > 0:
		return m.References[0]
	case len(m.InReplyTo) > 0:
		return m.InReplyTo[0]
	case m.MessageID != "":
		return m.MessageID
	default:
		return m.Raw.ID
	}
}

type Source struct {
	dir    string
	logger *slog.Logger
}

func NewSource(dir string, logger *slog.Logger) *Source {
	return &Source{
		dir:    dir,
		logger: logger.With("component", "eml", "dir", dir),
	}
}

// ListUnseenThreads groups unread files into threads and returns those whose
// latest message is after since, newest first.
func (s *Source) ListUnseenThreads(ctx context.Context, limit int, since time.Time) ([]model.RawThread, error) {
	msgs, err := s.load(ctx, false)
	if err != nil {
		return nil, err
	}

	var threads []model.RawThread
	for _, group := range groupThreads(msgs) {
		if latest := group.latest(); !latest.IsZero() && !latest.After(since) {
			continue
		}
		threads = append(threads, group.thread())
	}

	if limit > 0 && len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, nil
}

// Acknowledge renames the message file to *.eml.read.
func (s *Source) Acknowledge(ctx context.Context, msg model.RawMessage) error {
	from := filepath.Join(s.dir, msg.ID)
	to := strings.TrimSuffix(from, pendingExt) + readExt

	if err := os.Rename(from, to); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if _, statErr := os.Stat(to); statErr == nil {
				return nil
			}
		}
		return fmt.Errorf("failed to mark %s as read: %w", msg.ID, err)
	}
	return nil
}

// FetchThread looks id up as a thread key first, then as a message file or
// Message-ID. Read files are included.
func (s *Source) FetchThread(ctx context.Context, id string) (model.ThreadLookup, error) {
	msgs, err := s.load(ctx, true)
	if err != nil {
		return model.ThreadLookup{}, err
	}

	for _, group := range groupThreads(msgs) {
		if group.key == id {
			return model.ThreadLookup{Kind: model.LookupThread, Thread: group.thread()}, nil
		}
	}
	for _, msg := range msgs {
		if msg.Raw.ID == id || msg.MessageID == id {
			return model.ThreadLookup{
				Kind:   model.LookupMessage,
				Thread: model.RawThread{ID: msg.ThreadKey(), Messages: []model.RawMessage{msg.Raw}},
			}, nil
		}
	}
	return model.ThreadLookup{Kind: model.LookupMissing}, nil
}

func (s *Source) load(ctx context.Context, includeRead bool) ([]Message, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read mail directory: %w", err)
	}

	var msgs []Message
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(name, pendingExt) && !(includeRead && strings.HasSuffix(name, readExt)) {
			continue
		}

		msg, err := ParseFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("Skipping unreadable message file", "file", name, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ParseFile reads one RFC 5322 message. The message id is the file name
// without the read marker.
func ParseFile(path string) (Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return Message{}, err
	}
	defer f.Close()

	msg, err := Parse(f)
	if err != nil {
		return Message{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	msg.Raw.ID = strings.TrimSuffix(filepath.Base(path), ".read")
	return msg, nil
}

// Parse reads a message and keeps its first text/plain and text/html parts.
func Parse(r io.Reader) (Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return Message{}, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	msg := Message{
		Raw: model.RawMessage{
			Date:    h.Get("Date"),
			Sender:  headerText(h, "From"),
			To:      headerText(h, "To"),
			Cc:      headerText(h, "Cc"),
			Subject: headerText(h, "Subject"),
		},
	}
	msg.MessageID, _ = h.MessageID()
	msg.InReplyTo, _ = h.MsgIDList("In-Reply-To")
	msg.References, _ = h.MsgIDList("References")
	if date, err := parser.ParseDate(msg.Raw.Date); err == nil {
		msg.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return msg, fmt.Errorf("failed to read part: %w", err)
		}
		if part == nil {
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := inline.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(ct, "text/html") && msg.Raw.HTML == "":
			msg.Raw.HTML = string(body)
		case (strings.HasPrefix(ct, "text/plain") || ct == "") && msg.Raw.Plain == "":
			msg.Raw.Plain = string(body)
		}
	}
	return msg, nil
}

func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return v
	}
	return h.Get(key)
}

type threadGroup struct {
	key  string
	msgs []Message
}

func (g threadGroup) latest() time.Time {
	var latest time.Time
	for _, m := range g.msgs {
		if m.Date.After(latest) {
			latest = m.Date
		}
	}
	return latest
}

func (g threadGroup) thread() model.RawThread {
	thread := model.RawThread{ID: g.key, Messages: make([]model.RawMessage, len(g.msgs))}
	for i, m := range g.msgs {
		thread.Messages[i] = m.Raw
	}
	return thread
}

// groupThreads buckets messages by thread key, orders each bucket by date
// (undated messages last) and the buckets by their latest message, newest
// first.
func groupThreads(msgs []Message) []threadGroup {
	index := make(map[string]int)
	var groups []threadGroup
	for _, m := range msgs {
		key := m.ThreadKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, threadGroup{key: key})
		}
		groups[i].msgs = append(groups[i].msgs, m)
	}

	for _, g := range groups {
		sort.SliceStable(g.msgs, func(a, b int) bool {
			da, db := g.msgs[a].Date, g.msgs[b].Date
			if da.IsZero() || db.IsZero() {
				return !da.IsZero() && db.IsZero()
			}
			return da.Before(db)
		})
	}
	sort.SliceStable(groups, func(a, b int) bool {
		la, lb := groups[a].latest(), groups[b].latest()
		if la.Equal(lb) {
			return groups[a].key < groups[b].key
		}
		return la.After(lb)
	})
	return groups
}
