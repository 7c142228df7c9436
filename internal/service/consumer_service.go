package service

import (
	"context"
	"encoding/json"

	"rag-agent-be/internal/dto"
	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/memory"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the save-turn queue into conversation memory.
type consumerService struct {
	pubSub       *gochannel.GoChannel
	topicName    string
	conversation *memory.ConversationStore
	logger       logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	conversation *memory.ConversationStore,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:       pubSub,
		topicName:    topicName,
		conversation: conversation,
		logger:       log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.SaveChatTurnMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "failed to unmarshal save-turn message", map[string]interface{}{
			"error": err.Error(),
		})
		// Invalid payloads will never parse; ack so they don't loop.
		msg.Ack()
		return
	}

	if err := cs.conversation.Append(ctx, payload.SessionID, payload.Role, payload.Content); err != nil {
		// Memory is best-effort. A lost turn degrades follow-up
		// questions, it does not break answering, so no redelivery.
		cs.logger.Error("Consumer", "failed to persist chat turn", map[string]interface{}{
			"session_id": payload.SessionID,
			"error":      err.Error(),
		})
		msg.Ack()
		return
	}

	cs.logger.Debug("Consumer", "chat turn persisted", map[string]interface{}{
		"session_id": payload.SessionID,
		"role":       payload.Role,
	})
	msg.Ack()
}
