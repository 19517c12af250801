// Package parser validates provider messages and isolates the parts of their
// bodies that enrichment works on.
package parser

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"email-digest/internal/model"
)

const (
	ReasonNoContent     = "no content"
	ReasonUnparseableHT = "unparseable HTML"
)

// Parse validates msg. A message is usable when it has a non-blank plain body
// or HTML that yields text.
func Parse(msg model.RawMessage) model.ParsedMessage {
	parsed := model.ParsedMessage{RawMessage: msg, Valid: true}

	plain := strings.TrimSpace(msg.Plain)
	if strings.TrimSpace(msg.HTML) != "" {
		text, err := HTMLToText(msg.HTML)
		if err != nil {
			parsed.Valid = false
			parsed.ValidationError = fmt.Sprintf("%s: %v", ReasonUnparseableHT, err)
			return parsed
		}
		if plain == "" {
			parsed.Text = text
		}
	}
	if plain != "" {
		parsed.Text = plain
	}

	if parsed.Text == "" {
		parsed.Valid = false
		parsed.ValidationError = ReasonNoContent
	}
	return parsed
}

// ParseAll parses every message of a thread and partitions the result.
func ParseAll(msgs []model.RawMessage) (valid, invalid []model.ParsedMessage) {
	for _, msg := range msgs {
		parsed := Parse(msg)
		if parsed.Valid {
			valid = append(valid, parsed)
		} else {
			invalid = append(invalid, parsed)
		}
	}
	return valid, invalid
}

// Layouts tried after net/mail for dates that are close to RFC 5322.
var fallbackLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04 -0700",
	time.RFC3339,
}

// ParseDate parses a provider date header.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}
