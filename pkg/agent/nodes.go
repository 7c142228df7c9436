package agent

import (
	"context"
	"fmt"
	"strings"

	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/retrieval"
)

const (
	// gradeContextLimit caps how much retrieved text the relevance
	// grader sees. generateContextLimit caps the context handed to the
	// answer generator.
	gradeContextLimit    = 2000
	generateContextLimit = 4000

	// historyWindow is how many trailing conversation turns feed the
	// question contextualizer.
	historyWindow = 6

	noContextPlaceholder = "No context available."
	fallbackAnswer       = "I couldn't find an answer to your question."
)

const generateSystemPrompt = `You are an assistant for question-answering tasks. ` +
	`Use the retrieved context below to answer the question. ` +
	`If the context does not contain the answer, say you don't know. ` +
	`Keep the answer concise and factual.`

// retrieve runs a similarity search for the current question. A failed
// or empty search is not fatal; grading decides what happens next.
func (o *Orchestrator) retrieve(ctx context.Context, st *State) node {
	st.RetrievalCount++

	results, err := o.retriever.Search(ctx, st.Question, st.TopK)
	if err != nil {
		o.logger.Error("Agent", "retrieval failed", map[string]interface{}{
			"round": st.RetrievalCount,
			"error": err.Error(),
		})
		st.Documents = nil
		return nodeGrade
	}

	st.Documents = results
	o.logger.Debug("Agent", "retrieved documents", map[string]interface{}{
		"round": st.RetrievalCount,
		"count": len(results),
	})
	return nodeGrade
}

// grade asks the model whether the retrieved chunks actually help with
// the current working question, then routes: relevant documents go
// straight to generation, irrelevant ones trigger a rewrite until the
// retrieval budget runs out.
func (o *Orchestrator) grade(ctx context.Context, st *State) node {
	if len(st.Documents) == 0 {
		return o.routeAfterGrade(st)
	}

	docContext := truncateRunes(strings.Join(st.DocumentTexts(), "\n\n"), gradeContextLimit)
	prompt := fmt.Sprintf(
		"You are a grader assessing the relevance of retrieved documents to a user question.\n\n"+
			"Documents:\n%s\n\nQuestion: %s\n\n"+
			"Do the documents contain information relevant to the question? Answer with a single word: yes or no.",
		docContext, st.Question,
	)

	verdict, err := o.llm.Generate(ctx, prompt, llm.WithTemperature(0))
	if err != nil {
		// Grading is advisory. When the model is unreachable we keep
		// the documents and let generation work with what we have.
		o.logger.Warn("Agent", "grading failed, keeping documents", map[string]interface{}{
			"error": err.Error(),
		})
		return nodeGenerate
	}

	if !isYes(verdict) {
		o.logger.Debug("Agent", "documents graded irrelevant", map[string]interface{}{
			"round": st.RetrievalCount,
		})
		st.Documents = nil
	}
	return o.routeAfterGrade(st)
}

func (o *Orchestrator) routeAfterGrade(st *State) node {
	if len(st.Documents) > 0 {
		return nodeGenerate
	}
	if st.RetrievalCount >= o.cfg.MaxRetrievals {
		return nodeGenerate
	}
	return nodeRewrite
}

// rewrite reformulates the working question to improve the next
// retrieval round. The original question is preserved separately.
func (o *Orchestrator) rewrite(ctx context.Context, st *State) node {
	prompt := fmt.Sprintf(
		"The following question did not retrieve relevant documents from a knowledge base. "+
			"Rewrite it to be more specific and better suited for semantic search. "+
			"Return only the rewritten question.\n\nQuestion: %s",
		st.Question,
	)

	rewritten, err := o.llm.Generate(ctx, prompt, llm.WithTemperature(0))
	if err != nil || strings.TrimSpace(rewritten) == "" {
		if err != nil {
			o.logger.Warn("Agent", "rewrite failed, retrying with original question", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nodeRetrieve
	}

	st.Question = strings.TrimSpace(rewritten)
	o.logger.Debug("Agent", "question rewritten", map[string]interface{}{
		"question": st.Question,
	})
	return nodeRetrieve
}

// generate produces an answer from the current documents. With no
// documents the model is told explicitly that no context is available.
func (o *Orchestrator) generate(ctx context.Context, st *State) node {
	st.GenerationCount++

	docContext := noContextPlaceholder
	if len(st.Documents) > 0 {
		docContext = truncateRunes(retrieval.FormatResults(st.Documents), generateContextLimit)
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", docContext, st.Question)
	messages := []llm.Message{
		{Role: "system", Content: generateSystemPrompt},
		{Role: "user", Content: prompt},
	}

	answer, err := o.llm.Chat(ctx, messages)
	if err != nil {
		o.logger.Error("Agent", "generation failed", map[string]interface{}{
			"attempt": st.GenerationCount,
			"error":   err.Error(),
		})
		st.Answer = fallbackAnswer
		st.Grounded = false
		return nodeDone
	}

	st.Answer = strings.TrimSpace(answer)
	if st.Answer == "" {
		st.Answer = fallbackAnswer
		st.Grounded = false
		return nodeDone
	}
	return nodeCheck
}

// check verifies the answer against the documents it was generated
// from. By default the verdict never changes the answer path: log mode
// records it and annotate appends a caveat, the answer ships either
// way. Only the opt-in retry mode regenerates, bounded by the
// generation budget.
func (o *Orchestrator) check(ctx context.Context, st *State) node {
	if len(st.Documents) == 0 {
		// Nothing to be grounded in. The answer already admits that.
		st.Grounded = true
		return nodeDone
	}

	docContext := truncateRunes(strings.Join(st.DocumentTexts(), "\n\n"), gradeContextLimit)
	prompt := fmt.Sprintf(
		"You are a grader checking whether an answer is grounded in the given context.\n\n"+
			"Context:\n%s\n\nAnswer:\n%s\n\n"+
			"Is every factual claim in the answer supported by the context? Answer with a single word: yes or no.",
		docContext, st.Answer,
	)

	verdict, err := o.llm.Generate(ctx, prompt, llm.WithTemperature(0))
	if err != nil {
		o.logger.Warn("Agent", "hallucination check failed, accepting answer", map[string]interface{}{
			"error": err.Error(),
		})
		st.Grounded = true
		return nodeDone
	}

	st.Grounded = isYes(verdict)
	if st.Grounded {
		return nodeDone
	}

	if o.cfg.HallucinationMode == HallucinationRetry && st.GenerationCount < o.cfg.MaxGenerations {
		o.logger.Info("Agent", "answer not grounded, regenerating", map[string]interface{}{
			"attempt": st.GenerationCount,
		})
		return nodeGenerate
	}

	switch o.cfg.HallucinationMode {
	case HallucinationAnnotate:
		st.Answer = st.Answer + "\n\n(Note: this answer could not be fully verified against the retrieved sources.)"
	default:
		o.logger.Warn("Agent", "answer not grounded in retrieved context", map[string]interface{}{
			"question": st.OriginalQuestion,
		})
	}
	return nodeDone
}

// contextualize folds recent conversation turns into the question so
// follow-ups like "what about the second one" retrieve sensibly. Runs
// at most once, before the first retrieval.
func (o *Orchestrator) contextualize(ctx context.Context, st *State) {
	history := st.ChatHistory
	if len(history) == 0 {
		return
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}

	prompt := fmt.Sprintf(
		"Given the conversation below, rewrite the final user question so it can be understood "+
			"without the conversation. Return only the rewritten question, nothing else.\n\n"+
			"Conversation:\n%s\nQuestion: %s",
		b.String(), st.Question,
	)

	rewritten, err := o.llm.Generate(ctx, prompt, llm.WithTemperature(0))
	if err != nil || strings.TrimSpace(rewritten) == "" {
		if err != nil {
			o.logger.Warn("Agent", "contextualization failed, using raw question", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}

	st.Question = strings.TrimSpace(rewritten)
	o.logger.Debug("Agent", "question contextualized", map[string]interface{}{
		"question": st.Question,
	})
}

// isYes accepts any verdict containing "yes", case-insensitively, so
// chatty graders ("The answer is YES.") still count.
func isYes(verdict string) bool {
	return strings.Contains(strings.ToLower(verdict), "yes")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
