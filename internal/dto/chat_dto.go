package dto

type AskRequest struct {
	// SessionID may be omitted; a fresh session is created and its id
	// returned in the response.
	SessionID string `json:"session_id"`
	Question  string `json:"question" validate:"required"`
	TopK      int    `json:"top_k" validate:"omitempty,min=1,max=20"`
}

type SourceResponse struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type AskResponse struct {
	SessionID   string           `json:"session_id"`
	Answer      string           `json:"answer"`
	Sources     []SourceResponse `json:"sources"`
	Grounded    bool             `json:"grounded"`
	Retrievals  int              `json:"retrievals"`
	Generations int              `json:"generations"`
}

type HistoryTurnResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type HistoryResponse struct {
	SessionID string                `json:"session_id"`
	Turns     []HistoryTurnResponse `json:"turns"`
}
