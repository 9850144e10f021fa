package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/chatchai-k/docqa/internal/extract"
	"github.com/chatchai-k/docqa/internal/llm"
	"github.com/chatchai-k/docqa/internal/memory"
	"github.com/chatchai-k/docqa/internal/session"
	"github.com/chatchai-k/docqa/internal/splitter"
	"github.com/chatchai-k/docqa/internal/vectordb"
)

// Engine ties the collaborators together: extraction, chunking,
// storage, retrieval, generation, and session memory. Collaborators
// that failed to start may be nil; each operation checks what it needs
// and returns ErrNotInitialized so the server can run degraded.
type Engine struct {
	store     vectordb.Store
	splitter  *splitter.Splitter
	extractor *extract.Extractor
	provider  llm.Provider
	model     string
	memory    *memory.Manager
	sessions  *session.Store
	topK      int
	logger    *zap.Logger

	mu        sync.Mutex
	fileLocks map[string]*sync.Mutex
}

// IngestResult reports what one upload produced.
type IngestResult struct {
	Filename       string            `json:"filename"`
	Metadata       map[string]string `json:"metadata"`
	ChunksAdded    int               `json:"chunks_added"`
	TotalDocuments int               `json:"total_documents_in_db"`
}

// Chunk is one retrieved excerpt with its metadata and score.
type Chunk struct {
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float32           `json:"similarity"`
}

// Answer is the result of one question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"relevant_sources"`
	Chunks  []Chunk  `json:"source_chunks"`
}

// Stats summarizes the store contents.
type Stats struct {
	TotalChunks    int `json:"total_chunks"`
	TotalDocuments int `json:"total_documents"`
}

type Config struct {
	Store     vectordb.Store
	Splitter  *splitter.Splitter
	Extractor *extract.Extractor
	Provider  llm.Provider
	Model     string
	Memory    *memory.Manager
	Sessions  *session.Store
	TopK      int
	Logger    *zap.Logger
}

func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     cfg.Store,
		splitter:  cfg.Splitter,
		extractor: cfg.Extractor,
		provider:  cfg.Provider,
		model:     cfg.Model,
		memory:    cfg.Memory,
		sessions:  cfg.Sessions,
		topK:      cfg.TopK,
		logger:    logger,
		fileLocks: make(map[string]*sync.Mutex),
	}
}

// fileLock returns the mutex serializing writes for one file key, so
// concurrent re-ingestions of the same filename cannot interleave
// their delete and upsert phases.
func (e *Engine) fileLock(key string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.fileLocks[key]
	if !ok {
		l = &sync.Mutex{}
		e.fileLocks[key] = l
	}
	return l
}

// Ingest extracts, chunks, and stores one document. Re-ingesting a
// filename replaces every chunk of the previous version before any new
// chunk becomes visible.
func (e *Engine) Ingest(ctx context.Context, filename string, content []byte, metadata map[string]string) (*IngestResult, error) {
	if e.store == nil || e.extractor == nil || e.splitter == nil {
		return nil, fmt.Errorf("ingestion: %w", ErrNotInitialized)
	}

	ext := filepath.Ext(filename)
	if !extract.Supported(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	text, err := e.extractor.Extract(content, ext)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
		}
		// A supported extension with unreadable content yields nothing
		// to index, which is the empty-document case.
		return nil, fmt.Errorf("%w: extracting %s: %v", ErrEmptyDocument, filename, err)
	}

	chunks := e.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}

	key := FileKey(filename)
	docs := make([]vectordb.Document, len(chunks))
	for i, chunk := range chunks {
		meta := make(map[string]string, len(metadata)+3)
		for k, v := range metadata {
			meta[k] = v
		}
		meta[vectordb.MetaSourceFilename] = filename
		meta[vectordb.MetaFileKey] = key
		meta[vectordb.MetaChunkID] = strconv.Itoa(i)
		docs[i] = vectordb.Document{
			ID:       fmt.Sprintf("%s_%d", filename, i),
			Content:  chunk,
			Metadata: meta,
		}
	}

	lock := e.fileLock(key)
	lock.Lock()
	defer lock.Unlock()

	removed, err := e.store.DeleteWhere(ctx, vectordb.MetaFileKey, key)
	if err != nil {
		return nil, fmt.Errorf("%w: removing previous version of %s: %v", ErrStoreUnavailable, filename, err)
	}
	if err := e.store.Upsert(ctx, docs); err != nil {
		return nil, fmt.Errorf("%w: storing chunks of %s: %v", ErrStoreUnavailable, filename, err)
	}

	e.logger.Info("document ingested",
		zap.String("filename", filename),
		zap.Int("chunks", len(docs)),
		zap.Int("replaced", removed))

	return &IngestResult{
		Filename:       filename,
		Metadata:       metadata,
		ChunksAdded:    len(docs),
		TotalDocuments: e.store.Count(),
	}, nil
}

// Delete removes every chunk of the named document. Deleting a
// filename that was never ingested returns zero.
func (e *Engine) Delete(ctx context.Context, filename string) (int, error) {
	if e.store == nil {
		return 0, fmt.Errorf("deletion: %w", ErrNotInitialized)
	}

	key := FileKey(filename)
	lock := e.fileLock(key)
	lock.Lock()
	defer lock.Unlock()

	removed, err := e.store.DeleteWhere(ctx, vectordb.MetaFileKey, key)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting %s: %v", ErrStoreUnavailable, filename, err)
	}
	return removed, nil
}

// Query answers a question against the ingested documents, carrying
// the session's conversational context. The turn is recorded in memory
// and the transcript only after generation succeeds.
func (e *Engine) Query(ctx context.Context, sessionID, query string, filters map[string]string, k int) (*Answer, error) {
	if e.store == nil || e.provider == nil || e.memory == nil || e.sessions == nil {
		return nil, fmt.Errorf("query: %w", ErrNotInitialized)
	}
	if k <= 0 {
		k = e.topK
	}
	if k <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", k)
	}

	ok, err := e.sessions.Exists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("checking session %s: %w", sessionID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	history, err := e.memory.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading history for session %s: %w", sessionID, err)
	}

	results, err := e.store.Query(ctx, query, k, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Document.Content
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: buildUserPrompt(history, contents, query)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if err := e.memory.Record(ctx, sessionID, query, resp.Content); err != nil {
		e.logger.Warn("recording turn in session memory failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := e.sessions.AppendTurn(ctx, sessionID, query, resp.Content); err != nil {
		e.logger.Warn("appending turn to transcript failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	answer := &Answer{
		Answer:  resp.Content,
		Sources: distinctSources(results),
		Chunks:  make([]Chunk, len(results)),
	}
	for i, r := range results {
		answer.Chunks[i] = Chunk{Content: r.Document.Content, Metadata: r.Document.Metadata, Similarity: r.Similarity}
	}
	return answer, nil
}

// distinctSources returns the unique source filenames in retrieval order.
func distinctSources(results []vectordb.Result) []string {
	seen := make(map[string]bool, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		name := r.Document.Metadata[vectordb.MetaSourceFilename]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		sources = append(sources, name)
	}
	return sources
}

// ListDocuments returns the distinct ingested filenames.
func (e *Engine) ListDocuments(ctx context.Context) ([]string, error) {
	if e.store == nil {
		return nil, fmt.Errorf("listing documents: %w", ErrNotInitialized)
	}
	names, err := e.store.DistinctValues(ctx, vectordb.MetaSourceFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: listing documents: %v", ErrStoreUnavailable, err)
	}
	return names, nil
}

// Stats reports the total stored chunk count and distinct documents.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	if e.store == nil {
		return nil, fmt.Errorf("stats: %w", ErrNotInitialized)
	}
	names, err := e.store.DistinctValues(ctx, vectordb.MetaSourceFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: counting documents: %v", ErrStoreUnavailable, err)
	}
	return &Stats{TotalChunks: e.store.Count(), TotalDocuments: len(names)}, nil
}

// Sessions exposes the session store to the HTTP layer. Nil when the
// session database failed to open.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}
