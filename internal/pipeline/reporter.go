package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"email-digest/internal/model"
)

type Stats struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Duplicate int `json:"duplicate"`
}

// Publisher receives every outcome after it is rendered.
type Publisher interface {
	Publish(outcome model.Outcome)
}

// Reporter renders outcomes for the operator.
type Reporter struct {
	out        io.Writer
	publishers []Publisher
	logger     *slog.Logger

	mutex sync.Mutex
	stats Stats
}

func NewReporter(out io.Writer, logger *slog.Logger) *Reporter {
	return &Reporter{
		out:    out,
		logger: logger.With("component", "reporter"),
	}
}

// AddPublisher must be called before Run.
func (r *Reporter) AddPublisher(p Publisher) {
	r.publishers = append(r.publishers, p)
}

// Run renders every outcome until results is closed.
func (r *Reporter) Run(results <-chan model.Outcome) error {
	for outcome := range results {
		r.Render(outcome)
		for _, p := range r.publishers {
			p.Publish(outcome)
		}
	}

	stats := r.Stats()
	r.logger.Info("Reporter finished", "completed", stats.Completed, "failed", stats.Failed, "duplicate", stats.Duplicate)
	return nil
}

func (r *Reporter) Render(o model.Outcome) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	switch o.Status {
	case model.OutcomeCompleted:
		r.stats.Completed++
	case model.OutcomeFailed:
		r.stats.Failed++
	case model.OutcomeDuplicate:
		r.stats.Duplicate++
	}

	if _, err := io.WriteString(r.out, FormatOutcome(o)); err != nil {
		r.logger.Error("Failed to write report", "thread_id", o.ThreadID, "error", err)
	}
}

func (r *Reporter) Stats() Stats {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.stats
}

// FormatOutcome renders one outcome as an indented text block.
func FormatOutcome(o model.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thread %s [%s]\n", o.ThreadID, o.Status)

	switch o.Status {
	case model.OutcomeFailed:
		fmt.Fprintf(&b, "  Reason:   %s\n", o.FailureReason)
		return b.String()
	case model.OutcomeDuplicate:
		b.WriteString("  Already processed\n")
		return b.String()
	}

	fmt.Fprintf(&b, "  Category: %s\n", o.Category)
	if c := o.Contact; c != nil {
		fmt.Fprintf(&b, "  Contact:  %s <%s>, %s, %s, %s\n", c.Name, c.Email, c.JobTitle, c.Company, c.Phone)
		fmt.Fprintf(&b, "  Priority: %s\n", c.Importance)
	}
	for _, reply := range o.Replies {
		fmt.Fprintf(&b, "  Reply %d:  to %s after %.2f hours\n", reply.ReplyNumber, reply.From, reply.Delta.Hours())
	}
	if o.Skipped > 0 {
		fmt.Fprintf(&b, "  Skipped:  %d message(s)\n", o.Skipped)
	}
	fmt.Fprintf(&b, "  Summary:  %s\n", o.Summary)
	return b.String()
}
