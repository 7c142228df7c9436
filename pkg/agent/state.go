package agent

import (
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/retrieval"
)

// State carries everything a single question accumulates while it moves
// through the answering loop. A fresh State is built per question; it is
// never shared across goroutines.
type State struct {
	// Question is the current working query. Contextualization and
	// rewrite replace it, and every later node reads the replaced form.
	Question string

	// OriginalQuestion is the question as the user phrased it, kept for
	// logging.
	OriginalQuestion string

	// TopK is the retrieval depth for this run, settled before the loop
	// starts from the config and any per-call override.
	TopK int

	// Documents holds the retrieved chunks currently considered
	// relevant. Grading clears it when the chunks do not help.
	Documents []retrieval.Result

	Answer string

	// Grounded reports the last hallucination verdict. Meaningful only
	// once an answer exists.
	Grounded bool

	RetrievalCount  int
	GenerationCount int

	// ChatHistory is the prior conversation, oldest first. Used once to
	// contextualize the question before the first retrieval.
	ChatHistory []llm.Message
}

func newState(question string, history []llm.Message) *State {
	return &State{
		Question:         question,
		OriginalQuestion: question,
		ChatHistory:      history,
	}
}

// DocumentTexts returns just the chunk contents, in retrieval order.
func (s *State) DocumentTexts() []string {
	texts := make([]string, 0, len(s.Documents))
	for _, d := range s.Documents {
		texts = append(texts, d.Text)
	}
	return texts
}
