package service

import (
	"context"
	"log/slog"
	"strings"

	"email-digest/internal/model"
	"email-digest/internal/retry"
)

// ThreadClassifier maps a summary onto the closed category set.
type ThreadClassifier struct {
	ai     Classifier
	policy retry.Policy
	logger *slog.Logger
}

func NewThreadClassifier(ai Classifier, policy retry.Policy, logger *slog.Logger) *ThreadClassifier {
	return &ThreadClassifier{
		ai:     ai,
		policy: policy,
		logger: logger.With("component", "classifier"),
	}
}

// Classify returns one of model.Categories. Blank text is Others without a
// model call and unrecognized answers fall back to Others.
func (c *ThreadClassifier) Classify(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return model.CategoryOthers, nil
	}

	answer, err := retry.Value(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.ai.Classify(ctx, text, model.Categories)
	})
	if err != nil {
		return "", err
	}

	label := model.MatchLabel(answer, model.Categories, model.CategoryOthers)
	if !strings.EqualFold(strings.TrimSpace(answer), label) {
		c.logger.Debug("normalized classifier answer", "answer", answer, "label", label)
	}
	return label, nil
}
