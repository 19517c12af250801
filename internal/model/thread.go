package model

import (
	"time"

	"github.com/google/uuid"
)

type ThreadStatus string

const (
	StatusPending   ThreadStatus = "pending"
	StatusCompleted ThreadStatus = "completed"
	StatusFailed    ThreadStatus = "failed"
)

// RawMessage is a message as delivered by the mail provider. Date is the
// provider's original header value and is parsed by consumers.
type RawMessage struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Cc      string `json:"cc"`
	Subject string `json:"subject"`
	Plain   string `json:"plain"`
	HTML    string `json:"html"`
}

// RawThread is a provider thread with its messages in arrival order.
type RawThread struct {
	ID       string       `json:"id"`
	Messages []RawMessage `json:"messages"`
}

// Last returns the most recent message of the thread.
func (t RawThread) Last() (RawMessage, bool) {
	if len(t.Messages) == 0 {
		return RawMessage{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// ParsedMessage is a RawMessage after validation. Text is the body used for
// summarization: the plain body, or the HTML converted to text.
type ParsedMessage struct {
	RawMessage
	Text            string `json:"text"`
	Valid           bool   `json:"valid"`
	ValidationError string `json:"validation_error,omitempty"`
}

// ThreadRecord is the persisted lifecycle of one provider thread.
type ThreadRecord struct {
	ID            string       `json:"id" db:"id"`
	ThreadID      string       `json:"thread_id" db:"thread_id"`
	Sender        string       `json:"sender" db:"sender"`
	Subject       string       `json:"subject" db:"subject"`
	BodyPlain     string       `json:"body_plain" db:"body_plain"`
	BodyHTML      string       `json:"body_html" db:"body_html"`
	Status        ThreadStatus `json:"status" db:"status"`
	Summary       string       `json:"summary" db:"summary"`
	Category      string       `json:"category" db:"category"`
	FailureReason string       `json:"failure_reason" db:"failure_reason"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// NewThreadRecord creates a pending record seeded from the thread's last message.
func NewThreadRecord(thread RawThread) *ThreadRecord {
	now := time.Now().UTC()
	last, _ := thread.Last()
	return &ThreadRecord{
		ID:        uuid.New().String(),
		ThreadID:  thread.ID,
		Sender:    last.Sender,
		Subject:   last.Subject,
		BodyPlain: last.Plain,
		BodyHTML:  last.HTML,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SkippedMessage is an audit row for a message excluded from enrichment.
type SkippedMessage struct {
	ID        string    `json:"id" db:"id"`
	ThreadID  string    `json:"thread_id" db:"thread_id"`
	MessageID string    `json:"message_id" db:"message_id"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewSkippedMessage(threadID, messageID, reason string) SkippedMessage {
	return SkippedMessage{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		MessageID: messageID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

type LookupKind int

const (
	LookupMissing LookupKind = iota
	LookupThread
	LookupMessage
)

func (k LookupKind) String() string {
	switch k {
	case LookupThread:
		return "thread"
	case LookupMessage:
		return "message"
	default:
		return "missing"
	}
}

// ThreadLookup is the result of resolving an identifier that may name either
// a provider thread or a single message.
type ThreadLookup struct {
	Kind   LookupKind
	Thread RawThread
}
