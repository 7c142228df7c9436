package dto

// SaveChatTurnMessage is the payload queued after every answered
// question so conversation memory is written off the request path.
type SaveChatTurnMessage struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}
