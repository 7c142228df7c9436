package service

import (
	"context"
	"encoding/json"
	"strings"

	"rag-agent-be/internal/dto"
	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/internal/pkg/serverutils"
	"rag-agent-be/pkg/agent"
	"rag-agent-be/pkg/events"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatService interface {
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
	History(ctx context.Context, sessionID string) (*dto.HistoryResponse, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// Answerer runs the retrieval and generation loop for one question.
type Answerer interface {
	Answer(ctx context.Context, question string, history []llm.Message, opts ...agent.AnswerOption) (*agent.Outcome, error)
}

// ConversationMemory is the slice of the conversation store the chat
// service reads from. Writes go through the save-turn queue instead.
type ConversationMemory interface {
	History(ctx context.Context, sessionID string) ([]memory.ConversationTurn, error)
	Clear(ctx context.Context, sessionID string) error
}

type chatService struct {
	answerer     Answerer
	conversation ConversationMemory
	publisher    IPublisherService
	eventsPub    EventPublisher
	logger       logger.ILogger
}

func NewChatService(
	answerer Answerer,
	conversation ConversationMemory,
	publisher IPublisherService,
	eventsPub EventPublisher,
	log logger.ILogger,
) IChatService {
	return &chatService{
		answerer:     answerer,
		conversation: conversation,
		publisher:    publisher,
		eventsPub:    eventsPub,
		logger:       log,
	}
}

func (s *chatService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, serverutils.NewAppError(fiber.StatusBadRequest, "question must not be empty")
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// History is advisory context. A Redis outage should not block
	// answering, so read failures downgrade to an empty history.
	history := s.loadHistory(ctx, sessionID)

	var opts []agent.AnswerOption
	if req.TopK > 0 {
		opts = append(opts, agent.WithTopK(req.TopK))
	}

	outcome, err := s.answerer.Answer(ctx, question, history, opts...)
	if err != nil {
		return nil, err
	}

	s.queueTurn(ctx, sessionID, "user", question)
	s.queueTurn(ctx, sessionID, "assistant", outcome.Answer)

	sources := make([]dto.SourceResponse, 0, len(outcome.Sources))
	for _, src := range outcome.Sources {
		sources = append(sources, dto.SourceResponse{
			Text:   src.Text,
			Source: src.Source,
			Score:  src.Score,
		})
	}

	return &dto.AskResponse{
		SessionID:   sessionID,
		Answer:      outcome.Answer,
		Sources:     sources,
		Grounded:    outcome.Grounded,
		Retrievals:  outcome.Retrievals,
		Generations: outcome.Generations,
	}, nil
}

func (s *chatService) History(ctx context.Context, sessionID string) (*dto.HistoryResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, serverutils.NewAppError(fiber.StatusBadRequest, "session_id must not be empty")
	}

	turns, err := s.conversation.History(ctx, sessionID)
	if err != nil {
		return nil, serverutils.WrapAppError(fiber.StatusInternalServerError, "failed to read history", err)
	}

	res := &dto.HistoryResponse{
		SessionID: sessionID,
		Turns:     make([]dto.HistoryTurnResponse, 0, len(turns)),
	}
	for _, turn := range turns {
		res.Turns = append(res.Turns, dto.HistoryTurnResponse{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	return res, nil
}

func (s *chatService) ClearHistory(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return serverutils.NewAppError(fiber.StatusBadRequest, "session_id must not be empty")
	}

	if err := s.conversation.Clear(ctx, sessionID); err != nil {
		return serverutils.WrapAppError(fiber.StatusInternalServerError, "failed to clear history", err)
	}

	if s.eventsPub != nil {
		// Event delivery is informational; the history is already gone.
		if err := s.eventsPub.Publish(ctx, events.NewSessionCleared(sessionID)); err != nil {
			s.logger.Warn("Chat", "failed to publish session-cleared event", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}
	return nil
}

func (s *chatService) loadHistory(ctx context.Context, sessionID string) []llm.Message {
	turns, err := s.conversation.History(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Chat", "failed to load history, answering without it", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil
	}

	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

func (s *chatService) queueTurn(ctx context.Context, sessionID, role, content string) {
	payload, err := json.Marshal(dto.SaveChatTurnMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		s.logger.Error("Chat", "failed to marshal save-turn message", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return
	}

	if err := s.publisher.Publish(ctx, payload); err != nil {
		s.logger.Error("Chat", "failed to queue chat turn", map[string]interface{}{
			"session_id": sessionID,
			"role":       role,
			"error":      err.Error(),
		})
	}
}
