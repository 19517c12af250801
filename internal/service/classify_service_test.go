package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-digest/internal/ai"
	"email-digest/internal/logger"
	"email-digest/internal/model"
)

func TestClassifyBlankSkipsModel(t *testing.T) {
	mock := ai.NewMockAIClient()
	classifier := NewThreadClassifier(mock, testPolicy, logger.Discard())

	for _, text := range []string{"", "   ", "\n\t"} {
		label, err := classifier.Classify(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, model.CategoryOthers, label)
	}
	assert.Equal(t, 0, mock.ClassifyCalls())
}

func TestClassifyNormalizesAnswer(t *testing.T) {
	tests := []struct {
		answer string
		want   string
	}{
		{"Delivery", model.CategoryDelivery},
		{"The category is: Quality Control.", model.CategoryQualityControl},
		{"I am not sure", model.CategoryOthers},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			mock := ai.NewMockAIClient()
			mock.ClassifyFunc = func(ctx context.Context, text string, labels []string) (string, error) {
				assert.Equal(t, model.Categories, labels)
				return tt.answer, nil
			}
			classifier := NewThreadClassifier(mock, testPolicy, logger.Discard())

			label, err := classifier.Classify(context.Background(), "a summary")
			require.NoError(t, err)
			assert.Equal(t, tt.want, label)
		})
	}
}

func TestClassifyReturnsPersistentErrors(t *testing.T) {
	mock := ai.NewMockAIClient()
	mock.ClassifyFunc = func(ctx context.Context, text string, labels []string) (string, error) {
		return "", errors.New("quota exceeded")
	}
	classifier := NewThreadClassifier(mock, testPolicy, logger.Discard())

	_, err := classifier.Classify(context.Background(), "a summary")

	assert.EqualError(t, err, "quota exceeded")
	assert.Equal(t, testPolicy.Attempts, mock.ClassifyCalls())
}
