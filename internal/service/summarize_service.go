package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"email-digest/internal/model"
	"email-digest/internal/retry"
)

// maxRegroupPasses bounds how often partial summaries are summarized again
// before the final unify call.
const maxRegroupPasses = 4

// ThreadSummarizer turns the valid messages of a thread into one summary.
// Input above the chunk threshold is split into ordered chunks, each chunk is
// summarized, and one last call unifies the partial summaries.
type ThreadSummarizer struct {
	ai        Summarizer
	threshold int
	policy    retry.Policy
	logger    *slog.Logger
}

func NewThreadSummarizer(ai Summarizer, threshold int, policy retry.Policy, logger *slog.Logger) *ThreadSummarizer {
	return &ThreadSummarizer{
		ai:        ai,
		threshold: threshold,
		policy:    policy,
		logger:    logger.With("component", "summarizer"),
	}
}

// Summarize returns "" for an empty thread without calling the model.
func (s *ThreadSummarizer) Summarize(ctx context.Context, msgs []model.ParsedMessage) (string, error) {
	lines := MessageLines(msgs)
	if len(lines) == 0 {
		return "", nil
	}

	chunks := packChunks(lines, s.threshold)
	if len(chunks) == 1 {
		return s.call(ctx, chunks[0])
	}

	partials, err := s.summarizeAll(ctx, chunks)
	if err != nil {
		return "", err
	}

	combined := joinPartials(partials)
	for pass := 0; pass < maxRegroupPasses && s.threshold > 0 && runeLen(combined) > s.threshold; pass++ {
		groups := packChunks(partialLines(partials), s.threshold)
		if len(groups) >= len(partials) {
			break
		}
		if partials, err = s.summarizeAll(ctx, groups); err != nil {
			return "", err
		}
		combined = joinPartials(partials)
	}

	s.logger.Debug("unifying partial summaries", "chunks", len(chunks), "partials", len(partials))
	return s.call(ctx, combined)
}

func (s *ThreadSummarizer) summarizeAll(ctx context.Context, chunks []string) ([]string, error) {
	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		summary, err := s.call(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}
		partials = append(partials, summary)
	}
	return partials, nil
}

func (s *ThreadSummarizer) call(ctx context.Context, text string) (string, error) {
	return retry.Value(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.ai.Summarize(ctx, text)
	})
}

// MessageLines renders each message as "date - sender: body" with the body
// collapsed onto one line.
func MessageLines(msgs []model.ParsedMessage) []string {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		body := strings.Join(strings.Fields(msg.Text), " ")
		if body == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s - %s: %s", msg.Date, msg.Sender, body))
	}
	return lines
}

// packChunks greedily joins lines with newlines into chunks of at most
// threshold runes. A line longer than threshold is cut into pieces first.
// A non-positive threshold disables chunking.
func packChunks(lines []string, threshold int) []string {
	if threshold <= 0 {
		return []string{strings.Join(lines, "\n")}
	}

	var chunks []string
	var current strings.Builder
	size := 0
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, line := range lines {
		for _, piece := range splitRunes(line, threshold) {
			n := runeLen(piece)
			if size > 0 && size+1+n > threshold {
				flush()
			}
			if size > 0 {
				current.WriteByte('\n')
				size++
			}
			current.WriteString(piece)
			size += n
		}
	}
	flush()
	return chunks
}

func splitRunes(s string, max int) []string {
	if runeLen(s) <= max {
		return []string{s}
	}
	runes := []rune(s)
	var pieces []string
	for len(runes) > 0 {
		n := min(max, len(runes))
		pieces = append(pieces, string(runes[:n]))
		runes = runes[n:]
	}
	return pieces
}

func partialLines(partials []string) []string {
	lines := make([]string, len(partials))
	for i, p := range partials {
		lines[i] = strings.Join(strings.Fields(p), " ")
	}
	return lines
}

func joinPartials(partials []string) string {
	var b strings.Builder
	for i, p := range partials {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Part %d:\n%s", i+1, strings.TrimSpace(p))
	}
	return b.String()
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
