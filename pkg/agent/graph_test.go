package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/retrieval"
)

// scriptedLLM answers each kind of prompt from its own queue, so tests
// can drive the loop down a chosen path.
type scriptedLLM struct {
	relevance      []string
	groundedness   []string
	rewrites       []string
	contextualized []string
	answers        []string

	chatErr     error
	generateErr error

	chatPrompts     []string
	generatePrompts []string
}

func pop(queue *[]string, fallback string) string {
	if len(*queue) == 0 {
		return fallback
	}
	head := (*queue)[0]
	*queue = (*queue)[1:]
	return head
}

func (s *scriptedLLM) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	s.chatPrompts = append(s.chatPrompts, history[len(history)-1].Content)
	if s.chatErr != nil {
		return "", s.chatErr
	}
	return pop(&s.answers, "a generated answer"), nil
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	s.generatePrompts = append(s.generatePrompts, prompt)
	if s.generateErr != nil {
		return "", s.generateErr
	}
	switch {
	case strings.Contains(prompt, "relevance of retrieved documents"):
		return pop(&s.relevance, "yes"), nil
	case strings.Contains(prompt, "grounded in the given context"):
		return pop(&s.groundedness, "yes"), nil
	case strings.Contains(prompt, "rewrite the final user question"):
		return pop(&s.contextualized, "standalone question"), nil
	case strings.Contains(prompt, "Rewrite it to be more specific"):
		return pop(&s.rewrites, "rewritten question"), nil
	}
	return "", errors.New("unexpected prompt")
}

type scriptedRetriever struct {
	batches [][]retrieval.Result
	queries []string
	depths  []int
	err     error
}

func (r *scriptedRetriever) Search(_ context.Context, query string, topK int) ([]retrieval.Result, error) {
	r.queries = append(r.queries, query)
	r.depths = append(r.depths, topK)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.batches) == 0 {
		return nil, nil
	}
	head := r.batches[0]
	r.batches = r.batches[1:]
	return head, nil
}

func docs(texts ...string) []retrieval.Result {
	out := make([]retrieval.Result, 0, len(texts))
	for _, t := range texts {
		out = append(out, retrieval.Result{Text: t, Source: "kb.md", Score: 0.9})
	}
	return out
}

func newTestOrchestrator(l *scriptedLLM, r *scriptedRetriever, cfg Config) *Orchestrator {
	return NewOrchestrator(l, r, cfg, logger.NewNopLogger())
}

func TestAnswerHappyPath(t *testing.T) {
	mind := &scriptedLLM{answers: []string{"Go is a compiled language."}}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("Go compiles to machine code.")}}

	out, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "what is go", nil)

	require.NoError(t, err)
	assert.Equal(t, "Go is a compiled language.", out.Answer)
	assert.True(t, out.Grounded)
	assert.Equal(t, 1, out.Retrievals)
	assert.Equal(t, 1, out.Generations)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "kb.md", out.Sources[0].Source)
}

func TestAnswerRewritesAfterIrrelevantDocuments(t *testing.T) {
	mind := &scriptedLLM{
		relevance: []string{"no", "yes"},
		rewrites:  []string{"golang compilation model"},
		answers:   []string{"Go compiles ahead of time."},
	}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{
		docs("cooking recipes"),
		docs("Go compiles to native binaries."),
	}}

	out, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "how does go build work", nil)

	require.NoError(t, err)
	assert.Equal(t, 2, out.Retrievals)
	require.Len(t, ret.queries, 2)
	assert.Equal(t, "how does go build work", ret.queries[0])
	assert.Equal(t, "golang compilation model", ret.queries[1])
	assert.Equal(t, "Go compiles ahead of time.", out.Answer)
}

func TestAnswerGeneratesWithoutContextAfterRetrievalBudget(t *testing.T) {
	mind := &scriptedLLM{
		relevance: []string{"no", "no", "no"},
		answers:   []string{"I don't know."},
	}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{
		docs("noise"), docs("noise"), docs("noise"),
	}}

	out, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "obscure question", nil)

	require.NoError(t, err)
	assert.Equal(t, 3, out.Retrievals)
	assert.Equal(t, 1, out.Generations)
	assert.Empty(t, out.Sources)
	require.Len(t, mind.chatPrompts, 1)
	assert.Contains(t, mind.chatPrompts[0], "No context available.")
	// No documents means nothing to hallucinate against.
	assert.True(t, out.Grounded)
}

func TestAnswerLogModeGeneratesOnceWhenUngrounded(t *testing.T) {
	mind := &scriptedLLM{
		groundedness: []string{"no"},
		answers:      []string{"made up claim"},
	}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("context")}}

	out, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "question", nil)

	require.NoError(t, err)
	// The default mode only records the verdict; it never regenerates.
	assert.Equal(t, 1, out.Generations)
	assert.Equal(t, "made up claim", out.Answer)
	assert.False(t, out.Grounded)
}

func TestAnswerAnnotatesUngroundedAnswer(t *testing.T) {
	mind := &scriptedLLM{
		groundedness: []string{"no"},
		answers:      []string{"made up claim"},
	}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("context")}}
	cfg := Config{HallucinationMode: HallucinationAnnotate}

	out, err := newTestOrchestrator(mind, ret, cfg).Answer(context.Background(), "question", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, out.Generations)
	assert.False(t, out.Grounded)
	assert.Contains(t, out.Answer, "made up claim")
	assert.Contains(t, out.Answer, "could not be fully verified")
}

func TestAnswerRetryModeRegeneratesWhenUngrounded(t *testing.T) {
	mind := &scriptedLLM{
		groundedness: []string{"no", "yes"},
		answers:      []string{"made up claim", "supported claim"},
	}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("the supported claim source")}}
	cfg := Config{HallucinationMode: HallucinationRetry}

	out, err := newTestOrchestrator(mind, ret, cfg).Answer(context.Background(), "question", nil)

	require.NoError(t, err)
	assert.Equal(t, 2, out.Generations)
	assert.Equal(t, "supported claim", out.Answer)
	assert.True(t, out.Grounded)
}

func TestAnswerRetryModeKeepsLastAnswerAfterBudget(t *testing.T) {
	mind := &scriptedLLM{
		groundedness: []string{"no", "no"},
		answers:      []string{"claim one", "claim two"},
	}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("context")}}
	cfg := Config{HallucinationMode: HallucinationRetry}

	out, err := newTestOrchestrator(mind, ret, cfg).Answer(context.Background(), "question", nil)

	require.NoError(t, err)
	assert.Equal(t, 2, out.Generations)
	assert.Equal(t, "claim two", out.Answer)
	assert.False(t, out.Grounded)
}

func TestAnswerContextualizesWithHistory(t *testing.T) {
	mind := &scriptedLLM{
		contextualized: []string{"what are goroutines in Go"},
		answers:        []string{"Lightweight threads."},
	}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("goroutines are lightweight")}}
	history := []llm.Message{
		{Role: "user", Content: "tell me about Go"},
		{Role: "assistant", Content: "Go is a language by Google."},
	}

	out, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "what about goroutines", history)

	require.NoError(t, err)
	require.Len(t, ret.queries, 1)
	assert.Equal(t, "what are goroutines in Go", ret.queries[0])
	assert.Equal(t, "Lightweight threads.", out.Answer)

	// Every node after contextualization works with the rewritten
	// question, not the raw follow-up.
	require.Len(t, mind.chatPrompts, 1)
	assert.Contains(t, mind.chatPrompts[0], "Question: what are goroutines in Go")
	var gradePrompt string
	for _, p := range mind.generatePrompts {
		if strings.Contains(p, "relevance of retrieved documents") {
			gradePrompt = p
		}
	}
	require.NotEmpty(t, gradePrompt)
	assert.Contains(t, gradePrompt, "what are goroutines in Go")
	assert.NotContains(t, gradePrompt, "what about goroutines")
}

func TestAnswerContextualizeUsesRecentTurnsOnly(t *testing.T) {
	mind := &scriptedLLM{answers: []string{"fine"}}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("x")}}

	history := make([]llm.Message, 0, 10)
	for i := 0; i < 10; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, llm.Message{Role: role, Content: strings.Repeat("t", 3) + "-" + string(rune('a'+i))})
	}

	_, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "follow up", history)

	require.NoError(t, err)
	var contextPrompt string
	for _, p := range mind.generatePrompts {
		if strings.Contains(p, "rewrite the final user question") {
			contextPrompt = p
		}
	}
	require.NotEmpty(t, contextPrompt)
	assert.NotContains(t, contextPrompt, "ttt-a")
	assert.NotContains(t, contextPrompt, "ttt-d")
	assert.Contains(t, contextPrompt, "ttt-e")
	assert.Contains(t, contextPrompt, "ttt-j")
}

func TestAnswerSkipsContextualizeWithoutHistory(t *testing.T) {
	mind := &scriptedLLM{answers: []string{"direct"}}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("x")}}

	_, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "plain question", nil)

	require.NoError(t, err)
	for _, p := range mind.generatePrompts {
		assert.NotContains(t, p, "rewrite the final user question")
	}
}

func TestAnswerGradePromptTruncatesContext(t *testing.T) {
	mind := &scriptedLLM{answers: []string{"ok"}}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs(strings.Repeat("x", 5000))}}

	_, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "question", nil)

	require.NoError(t, err)
	var gradePrompt string
	for _, p := range mind.generatePrompts {
		if strings.Contains(p, "relevance of retrieved documents") {
			gradePrompt = p
		}
	}
	require.NotEmpty(t, gradePrompt)
	assert.Contains(t, gradePrompt, strings.Repeat("x", gradeContextLimit))
	assert.NotContains(t, gradePrompt, strings.Repeat("x", gradeContextLimit+1))
}

func TestAnswerCheckPromptTruncatesContext(t *testing.T) {
	mind := &scriptedLLM{answers: []string{"ok"}}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs(strings.Repeat("y", 5000))}}

	_, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "question", nil)

	require.NoError(t, err)
	var checkPrompt string
	for _, p := range mind.generatePrompts {
		if strings.Contains(p, "grounded in the given context") {
			checkPrompt = p
		}
	}
	require.NotEmpty(t, checkPrompt)
	assert.Contains(t, checkPrompt, strings.Repeat("y", gradeContextLimit))
	assert.NotContains(t, checkPrompt, strings.Repeat("y", gradeContextLimit+1))
}

func TestAnswerTopKDefaultsAndOverride(t *testing.T) {
	mind := &scriptedLLM{answers: []string{"ok"}}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("x")}}

	_, err := newTestOrchestrator(mind, ret, Config{TopK: 7}).Answer(context.Background(), "question", nil)
	require.NoError(t, err)
	require.Len(t, ret.depths, 1)
	assert.Equal(t, 7, ret.depths[0])

	mind = &scriptedLLM{answers: []string{"ok"}}
	ret = &scriptedRetriever{batches: [][]retrieval.Result{docs("x")}}

	_, err = newTestOrchestrator(mind, ret, Config{TopK: 7}).Answer(context.Background(), "question", nil, WithTopK(2))
	require.NoError(t, err)
	require.Len(t, ret.depths, 1)
	assert.Equal(t, 2, ret.depths[0])

	// Non-positive overrides keep the configured depth.
	mind = &scriptedLLM{answers: []string{"ok"}}
	ret = &scriptedRetriever{batches: [][]retrieval.Result{docs("x")}}

	_, err = newTestOrchestrator(mind, ret, Config{TopK: 7}).Answer(context.Background(), "question", nil, WithTopK(0))
	require.NoError(t, err)
	require.Len(t, ret.depths, 1)
	assert.Equal(t, 7, ret.depths[0])
}

func TestAnswerRetrieverFailureDegrades(t *testing.T) {
	mind := &scriptedLLM{answers: []string{"best effort"}}
	ret := &scriptedRetriever{err: errors.New("store down")}

	out, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "question", nil)

	require.NoError(t, err)
	assert.Equal(t, "best effort", out.Answer)
	assert.Equal(t, DefaultMaxRetrievals, out.Retrievals)
}

func TestAnswerChatFailureFallsBack(t *testing.T) {
	mind := &scriptedLLM{chatErr: errors.New("llm offline")}
	ret := &scriptedRetriever{batches: [][]retrieval.Result{docs("context")}}

	out, err := newTestOrchestrator(mind, ret, Config{}).Answer(context.Background(), "question", nil)

	require.NoError(t, err)
	assert.Equal(t, fallbackAnswer, out.Answer)
	assert.False(t, out.Grounded)
}

func TestAnswerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOrchestrator(&scriptedLLM{}, &scriptedRetriever{}, Config{}).Answer(ctx, "question", nil)

	require.ErrorIs(t, err, context.Canceled)
}

func TestIsYesVariants(t *testing.T) {
	assert.True(t, isYes("yes"))
	assert.True(t, isYes("Yes."))
	assert.True(t, isYes(" YES\n"))
	assert.True(t, isYes("yes, the documents are relevant"))
	assert.True(t, isYes("I would say yes"))
	assert.True(t, isYes("The documents are relevant, so the answer is YES."))
	assert.False(t, isYes("no"))
	assert.False(t, isYes(""))
	assert.False(t, isYes("not really"))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, retrieval.DefaultTopK, cfg.TopK)
	assert.Equal(t, DefaultMaxRetrievals, cfg.MaxRetrievals)
	assert.Equal(t, DefaultMaxGenerations, cfg.MaxGenerations)
	assert.Equal(t, HallucinationLog, cfg.HallucinationMode)

	cfg = Config{HallucinationMode: "annotate"}.withDefaults()
	assert.Equal(t, HallucinationAnnotate, cfg.HallucinationMode)

	cfg = Config{HallucinationMode: "retry"}.withDefaults()
	assert.Equal(t, HallucinationRetry, cfg.HallucinationMode)

	cfg = Config{HallucinationMode: "bogus"}.withDefaults()
	assert.Equal(t, HallucinationLog, cfg.HallucinationMode)
}
