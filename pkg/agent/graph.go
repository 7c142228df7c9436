package agent

import (
	"context"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/retrieval"
)

// Hallucination modes. Log keeps ungrounded answers as-is and records a
// warning; Annotate appends a visible caveat to the answer; Retry
// regenerates until the generation budget runs out, then logs.
const (
	HallucinationLog      = "log"
	HallucinationAnnotate = "annotate"
	HallucinationRetry    = "retry"
)

const (
	DefaultMaxRetrievals  = 3
	DefaultMaxGenerations = 2

	// maxSteps bounds the node loop independently of the retrieval and
	// generation budgets, so a routing bug can never spin forever.
	maxSteps = 16
)

type node int

const (
	nodeRetrieve node = iota
	nodeGrade
	nodeGenerate
	nodeRewrite
	nodeCheck
	nodeDone
)

// Retriever is the slice of the retrieval gateway the agent needs.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
}

type Config struct {
	TopK              int
	MaxRetrievals     int
	MaxGenerations    int
	HallucinationMode string
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = retrieval.DefaultTopK
	}
	if c.MaxRetrievals <= 0 {
		c.MaxRetrievals = DefaultMaxRetrievals
	}
	if c.MaxGenerations <= 0 {
		c.MaxGenerations = DefaultMaxGenerations
	}
	switch c.HallucinationMode {
	case HallucinationAnnotate, HallucinationRetry:
	default:
		c.HallucinationMode = HallucinationLog
	}
	return c
}

// Outcome is the final product of one answering run.
type Outcome struct {
	Answer   string
	Sources  []retrieval.Result
	Grounded bool

	// Retrievals and Generations report how much work the run took.
	Retrievals  int
	Generations int
}

// Orchestrator drives a question through retrieve, grade, rewrite,
// generate and hallucination-check nodes until an answer is produced.
type Orchestrator struct {
	llm       llm.LLMProvider
	retriever Retriever
	cfg       Config
	logger    logger.ILogger
}

func NewOrchestrator(provider llm.LLMProvider, retriever Retriever, cfg Config, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		llm:       provider,
		retriever: retriever,
		cfg:       cfg.withDefaults(),
		logger:    log,
	}
}

// AnswerOption tunes a single Answer call without touching the
// orchestrator's configuration.
type AnswerOption func(*State)

// WithTopK overrides the configured retrieval depth for one call.
// Non-positive values are ignored.
func WithTopK(k int) AnswerOption {
	return func(st *State) {
		if k > 0 {
			st.TopK = k
		}
	}
}

// Answer runs the full loop for one question. History is the prior
// conversation, oldest first; pass nil for a fresh session. Answer
// degrades rather than fails: LLM and retrieval errors inside the loop
// produce a best-effort answer, so a non-nil error only means the
// context was cancelled.
func (o *Orchestrator) Answer(ctx context.Context, question string, history []llm.Message, opts ...AnswerOption) (*Outcome, error) {
	st := newState(question, history)
	st.TopK = o.cfg.TopK
	for _, opt := range opts {
		opt(st)
	}
	o.contextualize(ctx, st)

	current := nodeRetrieve
	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch current {
		case nodeRetrieve:
			current = o.retrieve(ctx, st)
		case nodeGrade:
			current = o.grade(ctx, st)
		case nodeRewrite:
			current = o.rewrite(ctx, st)
		case nodeGenerate:
			current = o.generate(ctx, st)
		case nodeCheck:
			current = o.check(ctx, st)
		case nodeDone:
			return o.finish(st), nil
		}
	}

	o.logger.Error("Agent", "step budget exhausted", map[string]interface{}{
		"question":   st.OriginalQuestion,
		"retrievals": st.RetrievalCount,
	})
	if st.Answer == "" {
		st.Answer = fallbackAnswer
	}
	return o.finish(st), nil
}

func (o *Orchestrator) finish(st *State) *Outcome {
	return &Outcome{
		Answer:      st.Answer,
		Sources:     st.Documents,
		Grounded:    st.Grounded,
		Retrievals:  st.RetrievalCount,
		Generations: st.GenerationCount,
	}
}
