package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"rag-agent-be/internal/pkg/logger"
)

// MaxTurns caps the retained history per session; oldest entries are
// evicted first.
const MaxTurns = 20

// ConversationTurn is one message of a session transcript.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// ConversationStore keeps per-session transcripts in a Redis list under
// "chat:{session_id}". Entries are encoded "role:content"; only the first
// colon splits, so content containing colons survives a round trip.
//
// The store is best-effort by contract: callers treat read failures as
// empty history and write failures as dropped saves.
type ConversationStore struct {
	client *redis.Client
	logger logger.ILogger
}

func NewConversationStore(client *redis.Client, log logger.ILogger) *ConversationStore {
	return &ConversationStore{
		client: client,
		logger: log,
	}
}

func sessionKey(sessionID string) string {
	return "chat:" + sessionID
}

// Append pushes a turn and trims the list to the most recent MaxTurns.
func (s *ConversationStore) Append(ctx context.Context, sessionID, role, content string) error {
	key := sessionKey(sessionID)
	entry := role + ":" + content

	if err := s.client.RPush(ctx, key, entry).Err(); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if err := s.client.LTrim(ctx, key, -MaxTurns, -1).Err(); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

// History returns the session transcript in insertion order. Entries
// without a role separator are skipped.
func (s *ConversationStore) History(ctx context.Context, sessionID string) ([]ConversationTurn, error) {
	entries, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	turns := make([]ConversationTurn, 0, len(entries))
	for _, entry := range entries {
		role, content, ok := strings.Cut(entry, ":")
		if !ok {
			s.logger.Warn("Memory", "skipping malformed history entry", map[string]interface{}{
				"session_id": sessionID,
			})
			continue
		}
		turns = append(turns, ConversationTurn{Role: role, Content: content})
	}
	return turns, nil
}

// Clear deletes the whole transcript for a session.
func (s *ConversationStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
