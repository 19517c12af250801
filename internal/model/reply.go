package model

import "time"

// ReplyRecord measures one operator reply inside a thread. It is computed
// for reporting and never persisted.
type ReplyRecord struct {
	ReplyNumber int           `json:"reply_number"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	PrevAt      time.Time     `json:"prev_at"`
	ReplyAt     time.Time     `json:"reply_at"`
	Delta       time.Duration `json:"delta"`
}

type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeDuplicate OutcomeStatus = "duplicate"
)

// Outcome is what a worker hands to the reporting stage for one thread.
type Outcome struct {
	ThreadID      string         `json:"thread_id"`
	Status        OutcomeStatus  `json:"status"`
	Summary       string         `json:"summary,omitempty"`
	Category      string         `json:"category,omitempty"`
	Contact       *ContactRecord `json:"contact,omitempty"`
	Replies       []ReplyRecord  `json:"replies,omitempty"`
	Skipped       int            `json:"skipped"`
	FailureReason string         `json:"failure_reason,omitempty"`
}
