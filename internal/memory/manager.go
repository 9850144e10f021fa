package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager applies the summary-buffer policy on top of a Store: raw
// turns accumulate until they exceed maxTokens, then the oldest turns
// are folded into the running summary.
type Manager struct {
	store      Store
	summarizer Summarizer
	maxTokens  int
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store Store, summarizer Summarizer, maxTokens int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		summarizer: summarizer,
		maxTokens:  maxTokens,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing writes for one session.
func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// History returns the rendered conversation for prompt interpolation.
// A session with no recorded turns yields an empty string.
func (m *Manager) History(ctx context.Context, sessionID string) (string, error) {
	conv, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session memory: %w", err)
	}
	return conv.Render(), nil
}

// Record appends a completed turn and prunes the conversation back
// under the token budget. Summarization is best-effort: if it fails
// the pruned turns are kept unsummarized and the error is logged. The
// new turn is never lost.
func (m *Manager) Record(ctx context.Context, sessionID, question, answer string) error {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session memory: %w", err)
	}
	if conv == nil {
		conv = &Conversation{}
	}
	conv.Turns = append(conv.Turns, Turn{Question: question, Answer: answer})

	m.prune(ctx, sessionID, conv)

	if err := m.store.Put(ctx, sessionID, conv); err != nil {
		return fmt.Errorf("storing session memory: %w", err)
	}
	return nil
}

// prune pops the oldest turns until the retained turns fit maxTokens,
// always keeping at least the newest turn, and folds the popped turns
// into the summary with a single summarizer call.
func (m *Manager) prune(ctx context.Context, sessionID string, conv *Conversation) {
	var popped []Turn
	for conv.TurnTokens() > m.maxTokens && len(conv.Turns) > 1 {
		popped = append(popped, conv.Turns[0])
		conv.Turns = conv.Turns[1:]
	}
	if len(popped) == 0 {
		return
	}

	summary, err := m.summarizer.Summarize(ctx, conv.Summary, popped)
	if err != nil {
		// Keep the popped turns in place and try again next time.
		conv.Turns = append(popped, conv.Turns...)
		m.logger.Warn("conversation summarization failed, retaining raw turns",
			zap.String("session_id", sessionID),
			zap.Int("turns", len(popped)),
			zap.Error(err))
		return
	}
	conv.Summary = summary
}

// Evict drops the memory for a session, releasing its lock entry.
func (m *Manager) Evict(ctx context.Context, sessionID string) error {
	if err := m.store.Evict(ctx, sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.locks, sessionID)
	m.mu.Unlock()
	return nil
}
