package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatchai-k/docqa/internal/llm"
)

// Summarizer folds conversation turns into a running summary. The
// returned text replaces the previous summary entirely.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, turns []Turn) (string, error)
}

// LLMSummarizer produces progressive summaries with a chat model.
type LLMSummarizer struct {
	provider llm.Provider
	model    string
}

func NewLLMSummarizer(provider llm.Provider, model string) *LLMSummarizer {
	return &LLMSummarizer{provider: provider, model: model}
}

const summarizeSystemPrompt = `You maintain a running summary of a conversation between a human and an AI assistant.
Given the current summary and the new exchanges, produce an updated summary that preserves every fact, decision, and open question.
Keep it concise. Respond with the updated summary only.`

func (s *LLMSummarizer) Summarize(ctx context.Context, previous string, turns []Turn) (string, error) {
	var b strings.Builder
	if previous != "" {
		b.WriteString("Current summary:\n")
		b.WriteString(previous)
		b.WriteString("\n\n")
	} else {
		b.WriteString("Current summary: (none yet)\n\n")
	}
	b.WriteString("New exchanges:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "Human: %s\nAI: %s\n", t.Question, t.Answer)
	}

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarizeSystemPrompt},
			{Role: llm.RoleUser, Content: b.String()},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("summarizing conversation: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
