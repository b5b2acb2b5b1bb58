package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/llm"
)

func TestClassify_GreetingSkipsModel(t *testing.T) {
	tests := []string{"hi", "Hello!", "hey", "good morning", "thanks", "Thank you!", "bye", "ok"}

	for _, question := range tests {
		t.Run(question, func(t *testing.T) {
			mock := &llm.MockClient{}
			svc := NewIntentService(mock, 0.5, zap.NewNop())

			result := svc.Classify(context.Background(), question, "")

			assert.Equal(t, IntentGeneral, result.Intent)
			assert.GreaterOrEqual(t, result.Confidence, 0.9)
			assert.Equal(t, 0, mock.GenerateResponseCalls)
		})
	}
}

func TestClassify_ObviousDataQuerySkipsModel(t *testing.T) {
	tests := []string{
		"show me all crew members",
		"how many flights departed yesterday?",
		"list training records for March",
		"count the payroll entries",
	}

	for _, question := range tests {
		t.Run(question, func(t *testing.T) {
			mock := &llm.MockClient{}
			svc := NewIntentService(mock, 0.5, zap.NewNop())

			result := svc.Classify(context.Background(), question, "")

			assert.Equal(t, IntentData, result.Intent)
			assert.Equal(t, 0, mock.GenerateResponseCalls)
		})
	}
}

func TestClassify_AmbiguousUsesModel(t *testing.T) {
	mock := &llm.MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return `{"intent": "DATA", "confidence": 0.9, "reasoning": "asks about stored values"}`, nil
		},
	}
	svc := NewIntentService(mock, 0.5, zap.NewNop())

	result := svc.Classify(context.Background(), "what happened with the Ortiz situation?", "")

	assert.Equal(t, IntentData, result.Intent)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, 1, mock.GenerateResponseCalls)
}

func TestClassify_LowConfidenceBecomesClarification(t *testing.T) {
	mock := &llm.MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return `{"intent": "DATA", "confidence": 0.3, "follow_up_question": "Do you want roster details?"}`, nil
		},
	}
	svc := NewIntentService(mock, 0.5, zap.NewNop())

	result := svc.Classify(context.Background(), "tell me about the thing", "")

	assert.Equal(t, IntentClarification, result.Intent)
	assert.Equal(t, "Do you want roster details?", result.FollowUpQuestion)
}

func TestClassify_LowConfidenceWithoutFollowUpGetsDefault(t *testing.T) {
	mock := &llm.MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return `{"intent": "GENERAL", "confidence": 0.2}`, nil
		},
	}
	svc := NewIntentService(mock, 0.5, zap.NewNop())

	result := svc.Classify(context.Background(), "hmm interesting stuff", "")

	assert.Equal(t, IntentClarification, result.Intent)
	assert.NotEmpty(t, result.FollowUpQuestion)
}

func TestClassify_UnparseableResponseDefaultsToGeneral(t *testing.T) {
	mock := &llm.MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return "I cannot classify this.", nil
		},
	}
	svc := NewIntentService(mock, 0.5, zap.NewNop())

	result := svc.Classify(context.Background(), "something unusual entirely", "")

	assert.Equal(t, IntentGeneral, result.Intent)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestClassify_ModelFailureDefaultsToGeneral(t *testing.T) {
	mock := &llm.MockClient{
		GenerateResponseFunc: func(ctx context.Context, prompt, system string, temp float64) (string, error) {
			return "", errors.New("backend down")
		},
	}
	svc := NewIntentService(mock, 0.5, zap.NewNop())

	result := svc.Classify(context.Background(), "something unusual entirely", "")

	assert.Equal(t, IntentGeneral, result.Intent)
}
