// Package memory holds per-session conversational state: the recent
// question/answer turns plus a running summary that replaces older
// turns once the retained raw turns outgrow a token budget.
package memory

import (
	"fmt"
	"strings"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Conversation is the retained state of one session. It is
// JSON-serializable so stores can persist it outside the process.
type Conversation struct {
	Summary string `json:"summary,omitempty"`
	Turns   []Turn `json:"turns"`
}

// estimateTokens approximates the token count of text. One token is
// roughly four characters for the models this service targets.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// TurnTokens returns the estimated token count of the retained raw
// turns. The running summary does not count against the budget.
func (c *Conversation) TurnTokens() int {
	total := 0
	for _, t := range c.Turns {
		total += estimateTokens(t.Question) + estimateTokens(t.Answer)
	}
	return total
}

// Render formats the conversation for prompt interpolation: the
// summary (if any) followed by the retained turns in order.
func (c *Conversation) Render() string {
	if c == nil || (c.Summary == "" && len(c.Turns) == 0) {
		return ""
	}
	var b strings.Builder
	if c.Summary != "" {
		fmt.Fprintf(&b, "Summary of the earlier conversation: %s\n", c.Summary)
	}
	for _, t := range c.Turns {
		fmt.Fprintf(&b, "Human: %s\nAI: %s\n", t.Question, t.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}
