// Package services implements the text-to-SQL pipeline stages.
package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/llm"
	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/prompts"
)

// Intents emitted by classification.
const (
	IntentData          = "DATA"
	IntentGeneral       = "GENERAL"
	IntentClarification = "CLARIFICATION"
)

// IntentResult is the outcome of classifying one utterance.
type IntentResult struct {
	Intent           string
	Confidence       float64
	Reasoning        string
	FollowUpQuestion string
	Entities         []string
}

// Stage-one patterns. Matching any of these skips the model call entirely;
// greetings and obvious data questions dominate real traffic.
var (
	generalPattern = regexp.MustCompile(`(?i)^(hi|hello|hey|good\s*(morning|afternoon|evening)|thanks|thank\s*you|bye|goodbye|ok|okay|sure|yes|no|help)[\s!?.]*$`)

	dataVerbNounPattern = regexp.MustCompile(`(?i)(show\s*(me|all)?|list|how\s*many|count|total|get|display|fetch|find|lookup|search)\s*.*(crew|flight|pay|salary|leave|training|airport|aircraft|schedule|record|assignment|pairing|hotel|disruption|expense|benefit|compliance|incident)`)

	dataKeywordPattern = regexp.MustCompile(`(?i)\b(database|databases|tables|schema|columns|rows|records|data available|crew|flight|training|payroll|compliance)\b`)
)

// IntentService classifies utterances in two stages: deterministic patterns
// first, then a fast-model call only for the ambiguous remainder.
type IntentService struct {
	fast                llm.Client
	confidenceThreshold float64
	logger              *zap.Logger
}

// NewIntentService creates an intent classifier backed by the fast model.
func NewIntentService(fast llm.Client, confidenceThreshold float64, logger *zap.Logger) *IntentService {
	return &IntentService{
		fast:                fast,
		confidenceThreshold: confidenceThreshold,
		logger:              logger.Named("intent"),
	}
}

type intentResponse struct {
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	FollowUpQuestion string   `json:"follow_up_question"`
	DetectedEntities []string `json:"detected_entities"`
}

// Classify determines the intent of an utterance. history is the rendered
// recent conversation, possibly empty.
func (s *IntentService) Classify(ctx context.Context, question, history string) IntentResult {
	trimmed := strings.TrimSpace(question)

	if generalPattern.MatchString(trimmed) {
		return IntentResult{
			Intent:     IntentGeneral,
			Confidence: 0.99,
			Reasoning:  "pattern match: greeting or simple message",
		}
	}

	if dataVerbNounPattern.MatchString(question) || dataKeywordPattern.MatchString(question) {
		return IntentResult{
			Intent:     IntentData,
			Confidence: 0.95,
			Reasoning:  "pattern match: data query",
		}
	}

	return s.classifyWithModel(ctx, question, history)
}

func (s *IntentService) classifyWithModel(ctx context.Context, question, history string) IntentResult {
	prompt, system := prompts.IntentClassification(question, history)

	raw, err := s.fast.GenerateResponse(ctx, prompt, system, 0)
	if err != nil {
		s.logger.Warn("intent classification call failed, defaulting to general",
			zap.String("error", logging.SanitizeError(err)))
		return IntentResult{Intent: IntentGeneral, Confidence: 0.5, Reasoning: "classification unavailable"}
	}

	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		s.logger.Warn("intent response had no JSON, defaulting to general")
		return IntentResult{Intent: IntentGeneral, Confidence: 0.5, Reasoning: "unparseable classification"}
	}

	var parsed intentResponse
	if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
		s.logger.Warn("intent JSON did not parse, defaulting to general")
		return IntentResult{Intent: IntentGeneral, Confidence: 0.5, Reasoning: "unparseable classification"}
	}

	result := IntentResult{
		Intent:     strings.ToUpper(strings.TrimSpace(parsed.Intent)),
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
		Entities:   parsed.DetectedEntities,
	}
	if result.Intent != IntentData && result.Intent != IntentGeneral {
		result.Intent = IntentGeneral
	}

	// Low confidence escalates to a clarifying question rather than a guess.
	if result.Confidence < s.confidenceThreshold {
		followUp := strings.TrimSpace(parsed.FollowUpQuestion)
		if followUp == "" || strings.EqualFold(followUp, "null") {
			followUp = "I want to make sure I understand correctly. Are you asking me to look up specific records from the databases?"
		}
		result.Intent = IntentClarification
		result.FollowUpQuestion = followUp
	}

	return result
}
