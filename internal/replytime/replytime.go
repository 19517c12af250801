// Package replytime measures how long the operator took to answer the other
// participants of a thread.
package replytime

import (
	"strings"
	"time"

	"email-digest/internal/model"
	"email-digest/internal/parser"
)

type entry struct {
	addr   string
	header string
	at     time.Time
}

// Compute walks msgs in the given (chronological) order and emits one record
// for every operator message that directly follows a non-operator message.
// The delta runs from that most recent non-operator message. Follow-up
// operator messages in the same run produce nothing. Messages without a
// sender or a parseable date are ignored.
func Compute(msgs []model.ParsedMessage, operator string) []model.ReplyRecord {
	me := strings.ToLower(strings.TrimSpace(operator))
	if me == "" {
		return nil
	}

	var timeline []entry
	for _, msg := range msgs {
		sender := strings.TrimSpace(msg.Sender)
		if sender == "" {
			continue
		}
		at, err := parser.ParseDate(msg.Date)
		if err != nil {
			continue
		}
		timeline = append(timeline, entry{
			addr:   model.NormalizeEmail(sender),
			header: strings.ToLower(sender),
			at:     at,
		})
	}

	var records []model.ReplyRecord
	for i := 1; i < len(timeline); i++ {
		cur, prev := timeline[i], timeline[i-1]
		if !isOperator(cur, me) || isOperator(prev, me) {
			continue
		}
		from := prev.addr
		if from == "" {
			from = prev.header
		}
		records = append(records, model.ReplyRecord{
			ReplyNumber: len(records) + 1,
			From:        from,
			To:          me,
			PrevAt:      prev.at,
			ReplyAt:     cur.at,
			Delta:       cur.at.Sub(prev.at),
		})
	}
	return records
}

func isOperator(e entry, me string) bool {
	return e.addr == me || strings.Contains(e.header, me)
}
