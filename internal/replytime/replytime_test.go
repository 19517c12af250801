package replytime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-digest/internal/model"
)

const me = "bob@example.com"

func msg(sender, date string) model.ParsedMessage {
	return model.ParsedMessage{
		RawMessage: model.RawMessage{Sender: sender, Date: date, Plain: "x"},
		Text:       "x",
		Valid:      true,
	}
}

func TestComputeSingleReply(t *testing.T) {
	records := Compute([]model.ParsedMessage{
		msg("Alice <alice@example.com>", "Mon, 1 Jan 2025 10:00:00 -0800"),
		msg("Bob <Bob@Example.com>", "Mon, 1 Jan 2025 12:30:00 -0800"),
	}, me)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, 1, rec.ReplyNumber)
	assert.Equal(t, "alice@example.com", rec.From)
	assert.Equal(t, me, rec.To)
	assert.Equal(t, 150*time.Minute, rec.Delta)
	assert.True(t, rec.ReplyAt.Equal(time.Date(2025, 1, 1, 20, 30, 0, 0, time.UTC)))
	assert.True(t, rec.PrevAt.Equal(time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)))
}

func TestComputeConsecutiveOperatorMessagesCountOnce(t *testing.T) {
	records := Compute([]model.ParsedMessage{
		msg("alice@example.com", "Mon, 1 Jan 2025 10:00:00 +0000"),
		msg("carol@example.com", "Mon, 1 Jan 2025 10:30:00 +0000"),
		msg("bob@example.com", "Mon, 1 Jan 2025 11:00:00 +0000"),
		msg("bob@example.com", "Mon, 1 Jan 2025 11:05:00 +0000"),
		msg("alice@example.com", "Mon, 1 Jan 2025 13:00:00 +0000"),
		msg("bob@example.com", "Mon, 1 Jan 2025 14:00:00 +0000"),
	}, me)

	require.Len(t, records, 2)
	assert.Equal(t, "carol@example.com", records[0].From)
	assert.Equal(t, 30*time.Minute, records[0].Delta)
	assert.Equal(t, 2, records[1].ReplyNumber)
	assert.Equal(t, "alice@example.com", records[1].From)
	assert.Equal(t, time.Hour, records[1].Delta)
}

func TestComputeNoOperatorMessages(t *testing.T) {
	records := Compute([]model.ParsedMessage{
		msg("Alice <alice@example.com>", "Mon, 1 Jan 2025 10:00:00 -0800"),
	}, me)

	assert.Empty(t, records)
}

func TestComputeSkipsUnparseableDates(t *testing.T) {
	records := Compute([]model.ParsedMessage{
		msg("alice@example.com", "Mon, 1 Jan 2025 10:00:00 +0000"),
		msg("dave@example.com", "not a date"),
		msg("bob@example.com", "Mon, 1 Jan 2025 10:10:00 +0000"),
	}, me)

	require.Len(t, records, 1)
	assert.Equal(t, "alice@example.com", records[0].From)
	assert.Equal(t, 10*time.Minute, records[0].Delta)
}

func TestComputeOperatorFirstProducesNothing(t *testing.T) {
	records := Compute([]model.ParsedMessage{
		msg("bob@example.com", "Mon, 1 Jan 2025 10:00:00 +0000"),
		msg("alice@example.com", "Mon, 1 Jan 2025 11:00:00 +0000"),
	}, me)

	assert.Empty(t, records)
}
