package rag

import (
	"strings"
)

const systemPrompt = `You are a helpful assistant that answers questions using only the provided document excerpts.
If the excerpts do not contain enough information to answer, say "I don't have enough information in the provided documents to answer that." instead of guessing.
Do not use knowledge from outside the excerpts.`

// buildUserPrompt assembles the user message: prior conversation (if
// any), the retrieved excerpts joined by blank lines in retrieval
// order, and the question.
func buildUserPrompt(history string, chunks []string, question string) string {
	var b strings.Builder
	if history != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(history)
		b.WriteString("\n\n")
	}
	b.WriteString("Document excerpts:\n")
	if len(chunks) == 0 {
		b.WriteString("(no relevant excerpts found)\n")
	} else {
		b.WriteString(strings.Join(chunks, "\n\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
