package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/apperrors"
	"github.com/crewquery/engine/pkg/config"
	"github.com/crewquery/engine/pkg/llm"
	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/models"
	"github.com/crewquery/engine/pkg/pii"
	"github.com/crewquery/engine/pkg/prompts"
	"github.com/crewquery/engine/pkg/schema"
)

// Response intents visible to clients.
const (
	ResponseIntentMeta      = "meta"
	ResponseIntentData      = "data"
	ResponseIntentAmbiguous = "ambiguous"
	ResponseIntentGeneral   = "general"
	ResponseIntentError     = "error"
)

const (
	notReadyResponse = "The data catalog is still loading. Please try again in a moment."
	exhaustedResponse = "I could not find a working query for that question. " +
		"Could you try rephrasing it, perhaps naming the specific records you are interested in?"
	backendErrorResponse = "I'm having trouble processing your request right now. " +
		"Could you try rephrasing your question?"
)

// cannedGreetings answers trivial greetings without any model call.
var cannedGreetings = map[string]string{
	"hi":             "Hello! I can help you query the connected databases. What would you like to know?",
	"hello":          "Hello! I can help you query the connected databases. What would you like to know?",
	"hey":            "Hey there! How can I help you today?",
	"good morning":   "Good morning! How can I assist you today?",
	"good afternoon": "Good afternoon! How can I assist you today?",
	"good evening":   "Good evening! How can I assist you today?",
	"thanks":         "You're welcome! Let me know if you need anything else.",
	"thank you":      "You're welcome! Feel free to ask if you have more questions.",
	"bye":            "Goodbye! Have a great day!",
	"goodbye":        "Goodbye! Have a great day!",
}

// ChatResult is the outcome of one chat turn, mirrored by the HTTP layer.
type ChatResult struct {
	Success          bool
	Response         string
	Intent           string
	ConversationID   uuid.UUID
	SQLQuery         *string
	SQLResults       *models.ExecutionResult
	Clarification    *string
	Suggestions      []string
	ProcessingTimeMs int64
	Error            *string
}

// ChatService orchestrates the full pipeline for one message.
type ChatService struct {
	conversations *ConversationService
	catalog       *schema.Catalog
	retriever     *schema.Retriever
	intents       *IntentService
	rewriter      *RewriterService
	loop          *CorrectionLoop
	summarizer    *SummarizerService
	fast          llm.Client
	pipeline      config.PipelineConfig
	logger        *zap.Logger
}

// NewChatService wires the pipeline stages together.
func NewChatService(
	conversations *ConversationService,
	catalog *schema.Catalog,
	retriever *schema.Retriever,
	intents *IntentService,
	rewriter *RewriterService,
	loop *CorrectionLoop,
	summarizer *SummarizerService,
	fast llm.Client,
	pipeline config.PipelineConfig,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		catalog:       catalog,
		retriever:     retriever,
		intents:       intents,
		rewriter:      rewriter,
		loop:          loop,
		summarizer:    summarizer,
		fast:          fast,
		pipeline:      pipeline,
		logger:        logger.Named("chat"),
	}
}

// HandleMessage processes one user message end to end. Turns within a
// conversation are serialized; different conversations run in parallel.
func (s *ChatService) HandleMessage(ctx context.Context, message string, conversationID *uuid.UUID) (*ChatResult, error) {
	start := time.Now()

	conv, err := s.conversations.GetOrCreate(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	release := s.conversations.Acquire(conv.ID)
	defer release()

	turns, err := s.conversations.History(ctx, conv.ID, s.pipeline.HistoryWindow)
	if err != nil && !errors.Is(err, apperrors.ErrConversationNotFound) {
		return nil, err
	}

	// The masker lives for exactly one request: mappings are dropped as soon
	// as the final response is unmasked, so raw PII never outlives the turn.
	masker := pii.NewMasker(s.logger)
	masked := masker.Mask(message)

	// Resolve follow-up references before anything downstream sees the
	// question.
	effective := masked
	if len(turns) > 0 {
		window := turns
		if len(window) > s.pipeline.RewriteWindow {
			window = window[len(window)-s.pipeline.RewriteWindow:]
		}
		effective = s.rewriter.Rewrite(ctx, masked, RenderHistory(window))
	}

	result := s.route(ctx, effective, RenderHistory(turns))
	result.ConversationID = conv.ID

	// Persist while still masked so PII never reaches the store, then
	// restore PII on the way out; placeholders the masker never issued are
	// scrubbed, not leaked.
	s.persistTurn(ctx, conv.ID, masked, effective, result)

	result.Response = s.unmask(masker, result.Response)
	if result.Clarification != nil {
		clarified := s.unmask(masker, *result.Clarification)
		result.Clarification = &clarified
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// route runs the intent-dependent part of the pipeline on the masked,
// self-contained question.
func (s *ChatService) route(ctx context.Context, question, history string) *ChatResult {
	if IsMetaQuestion(question) {
		return s.handleMeta(question)
	}

	intent := s.intents.Classify(ctx, question, history)

	switch intent.Intent {
	case IntentClarification:
		clarification := intent.FollowUpQuestion
		return &ChatResult{
			Success:       true,
			Intent:        ResponseIntentAmbiguous,
			Response:      clarification,
			Clarification: &clarification,
		}
	case IntentData:
		return s.handleData(ctx, question)
	default:
		return s.handleGeneral(ctx, question, history)
	}
}

func (s *ChatService) handleMeta(question string) *ChatResult {
	snap, err := s.catalog.Snapshot()
	if err != nil {
		return errorResult(notReadyResponse, "catalog unavailable")
	}
	return &ChatResult{
		Success:  true,
		Intent:   ResponseIntentMeta,
		Response: AnswerMetaQuestion(question, snap),
	}
}

func (s *ChatService) handleData(ctx context.Context, question string) *ChatResult {
	entries, err := s.retriever.Retrieve(ctx, question, s.pipeline.TopK)
	if err != nil {
		if errors.Is(err, apperrors.ErrCatalogUnavailable) {
			return errorResult(notReadyResponse, "catalog unavailable")
		}
		s.logger.Error("schema retrieval failed", zap.String("error", logging.SanitizeError(err)))
		return errorResult(backendErrorResponse, "schema retrieval failed")
	}

	outcome, err := s.loop.Run(ctx, question, entries)
	if err != nil {
		s.logger.Error("pipeline failed before execution", zap.String("error", logging.SanitizeError(err)))
		return errorResult(backendErrorResponse, "query generation failed")
	}

	if outcome.State != StateSucceeded {
		s.logger.Warn("correction loop exhausted",
			zap.Int("attempts", len(outcome.Attempts)),
			zap.String("last_error", logging.SanitizeError(outcome.LastError)))
		return errorResult(exhaustedResponse, "could not produce a working query")
	}

	summary, suggestions, err := s.summarizer.Summarize(ctx, question, outcome.SQL, outcome.Result)
	if err != nil {
		s.logger.Error("summarization failed", zap.String("error", logging.SanitizeError(err)))
		return errorResult(backendErrorResponse, "summarization failed")
	}

	return &ChatResult{
		Success:     true,
		Intent:      ResponseIntentData,
		Response:    summary,
		SQLQuery:    &outcome.SQL,
		SQLResults:  outcome.Result,
		Suggestions: suggestions,
	}
}

func (s *ChatService) handleGeneral(ctx context.Context, question, history string) *ChatResult {
	key := strings.ToLower(strings.TrimRight(strings.TrimSpace(question), "!?. "))
	if canned, ok := cannedGreetings[key]; ok {
		return &ChatResult{Success: true, Intent: ResponseIntentGeneral, Response: canned}
	}

	out, err := s.fast.GenerateResponse(ctx, prompts.GeneralChat(question, history), "", 0.7)
	if err != nil {
		s.logger.Warn("general chat call failed", zap.String("error", logging.SanitizeError(err)))
		return errorResult(backendErrorResponse, "chat backend unavailable")
	}
	return &ChatResult{Success: true, Intent: ResponseIntentGeneral, Response: strings.TrimSpace(out)}
}

func (s *ChatService) unmask(masker *pii.Masker, text string) string {
	out := masker.Unmask(text)
	if len(out.Unresolved) > 0 {
		s.logger.Error("response contained unresolved placeholders",
			zap.Strings("placeholders", out.Unresolved))
	}
	return out.Text
}

// persistTurn appends the masked turn to the conversation. Masked forms are
// stored so PII never reaches the application store.
func (s *ChatService) persistTurn(ctx context.Context, convID uuid.UUID, masked, effective string, result *ChatResult) {
	turn := &models.Turn{
		ConversationID: convID,
		Utterance:      masked,
		Intent:         result.Intent,
		SQLQuery:       result.SQLQuery,
	}
	if effective != masked {
		turn.Rewritten = &effective
	}
	if result.Response != "" {
		summary := result.Response
		turn.ResultSummary = &summary
	}

	if err := s.conversations.AppendTurn(ctx, turn); err != nil {
		s.logger.Error("failed to persist turn", zap.String("error", logging.SanitizeError(err)))
	}
}

func errorResult(response, errMsg string) *ChatResult {
	return &ChatResult{
		Success:  false,
		Intent:   ResponseIntentError,
		Response: response,
		Error:    &errMsg,
	}
}
