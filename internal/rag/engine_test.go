package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/chatchai-k/docqa/internal/db"
	"github.com/chatchai-k/docqa/internal/extract"
	"github.com/chatchai-k/docqa/internal/llm"
	"github.com/chatchai-k/docqa/internal/memory"
	"github.com/chatchai-k/docqa/internal/session"
	"github.com/chatchai-k/docqa/internal/splitter"
	"github.com/chatchai-k/docqa/internal/vectordb"
)

// fakeStore is an in-memory vectordb.Store that preserves insertion
// order so retrieval-order assertions are deterministic.
type fakeStore struct {
	mu        sync.Mutex
	order     []string
	docs      map[string]vectordb.Document
	upsertErr error
	deleteErr error
	queryErr  error
	lastWhere map[string]string
	lastK     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]vectordb.Document)}
}

func (s *fakeStore) Upsert(_ context.Context, docs []vectordb.Document) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		if _, ok := s.docs[d.ID]; !ok {
			s.order = append(s.order, d.ID)
		}
		s.docs[d.ID] = d
	}
	return nil
}

func (s *fakeStore) DeleteWhere(_ context.Context, field, value string) (int, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		if s.docs[id].Metadata[field] == value {
			delete(s.docs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed, nil
}

func (s *fakeStore) Query(_ context.Context, _ string, k int, where map[string]string) ([]vectordb.Result, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWhere = where
	s.lastK = k

	var results []vectordb.Result
	for _, id := range s.order {
		doc := s.docs[id]
		match := true
		for f, v := range where {
			if doc.Metadata[f] != v {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		results = append(results, vectordb.Result{
			Document:   doc,
			Similarity: 1 - float32(len(results))*0.1,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

func (s *fakeStore) DistinctValues(_ context.Context, field string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var values []string
	for _, id := range s.order {
		if v, ok := s.docs[id].Metadata[field]; ok && !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	return values, nil
}

func (s *fakeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// fakeProvider returns a canned answer and records the last request.
type fakeProvider struct {
	mu      sync.Mutex
	answer  string
	err     error
	lastReq llm.CompletionRequest
	calls   int
}

func (p *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.answer}, nil
}

func (p *fakeProvider) Name() string { return "fake" }

type passthroughSummarizer struct{}

func (passthroughSummarizer) Summarize(_ context.Context, previous string, _ []memory.Turn) (string, error) {
	return previous, nil
}

func newTestEngine(t *testing.T, store vectordb.Store, provider llm.Provider) (*Engine, *session.Store) {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening session db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	sessions := session.NewStore(database)

	memStore := memory.NewMapStore(0, 0)
	t.Cleanup(memStore.Close)
	manager := memory.NewManager(memStore, passthroughSummarizer{}, 1000, zap.NewNop())

	return NewEngine(Config{
		Store:     store,
		Splitter:  splitter.New(1000, 200),
		Extractor: extract.NewExtractor(),
		Provider:  provider,
		Model:     "test-model",
		Memory:    manager,
		Sessions:  sessions,
		TopK:      5,
		Logger:    zap.NewNop(),
	}), sessions
}

func TestIngestStoresChunksWithReservedMetadata(t *testing.T) {
	store := newFakeStore()
	engine, _ := newTestEngine(t, store, &fakeProvider{answer: "ok"})
	ctx := context.Background()

	result, err := engine.Ingest(ctx, "notes.txt", []byte("Alpha content here."), map[string]string{"author": "kim"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.ChunksAdded != 1 || result.TotalDocuments != 1 {
		t.Fatalf("Ingest() = %+v, want 1 chunk, 1 total", result)
	}
	if result.Filename != "notes.txt" || result.Metadata["author"] != "kim" {
		t.Fatalf("Ingest() echoed %+v", result)
	}

	doc, ok := store.docs["notes.txt_0"]
	if !ok {
		t.Fatalf("chunk id notes.txt_0 not stored; have %v", store.order)
	}
	if doc.Metadata[vectordb.MetaSourceFilename] != "notes.txt" {
		t.Errorf("source_filename = %q", doc.Metadata[vectordb.MetaSourceFilename])
	}
	if doc.Metadata[vectordb.MetaFileKey] != FileKey("notes.txt") {
		t.Errorf("file key = %q, want FileKey of the filename", doc.Metadata[vectordb.MetaFileKey])
	}
	if doc.Metadata[vectordb.MetaChunkID] != "0" {
		t.Errorf("chunk_id = %q, want \"0\"", doc.Metadata[vectordb.MetaChunkID])
	}
	if doc.Metadata["author"] != "kim" {
		t.Errorf("user metadata not inherited: %v", doc.Metadata)
	}
}

func TestIngestRejectsUnsupportedFormat(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeStore(), &fakeProvider{})

	_, err := engine.Ingest(context.Background(), "binary.exe", []byte("x"), nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Ingest(.exe) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestIngestRejectsEmptyDocument(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeStore(), &fakeProvider{})

	_, err := engine.Ingest(context.Background(), "blank.txt", []byte("   \n\t  "), nil)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("Ingest(blank) error = %v, want ErrEmptyDocument", err)
	}
}

func TestReingestReplacesPreviousVersion(t *testing.T) {
	store := newFakeStore()
	engine, _ := newTestEngine(t, store, &fakeProvider{})
	ctx := context.Background()

	long := strings.Repeat("First version sentence. ", 100)
	if _, err := engine.Ingest(ctx, "doc.txt", []byte(long), nil); err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	before := store.Count()
	if before < 2 {
		t.Fatalf("expected multiple chunks from the long document, got %d", before)
	}

	result, err := engine.Ingest(ctx, "doc.txt", []byte("Second version."), nil)
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if result.ChunksAdded != 1 {
		t.Fatalf("second version chunks = %d, want 1", result.ChunksAdded)
	}
	if store.Count() != 1 {
		t.Fatalf("store count after replacement = %d, want 1 (old chunks gone)", store.Count())
	}
	if store.docs["doc.txt_0"].Content != "Second version." {
		t.Fatalf("chunk content = %q, want the second version", store.docs["doc.txt_0"].Content)
	}
}

func TestDeleteReturnsRemovedCount(t *testing.T) {
	store := newFakeStore()
	engine, _ := newTestEngine(t, store, &fakeProvider{})
	ctx := context.Background()

	long := strings.Repeat("Sentence for the deletion test. ", 100)
	if _, err := engine.Ingest(ctx, "doc.txt", []byte(long), nil); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	want := store.Count()

	removed, err := engine.Delete(ctx, "doc.txt")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != want {
		t.Fatalf("Delete() removed %d, want %d", removed, want)
	}
	if store.Count() != 0 {
		t.Fatalf("store count after delete = %d, want 0", store.Count())
	}
}

func TestDeleteUnknownFilenameIsNoop(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeStore(), &fakeProvider{})

	removed, err := engine.Delete(context.Background(), "never-ingested.txt")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed != 0 {
		t.Fatalf("Delete() removed %d, want 0", removed)
	}
}

func TestQueryAnswersWithSourcesInRetrievalOrder(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{answer: "grounded answer"}
	engine, sessions := newTestEngine(t, store, provider)
	ctx := context.Background()

	if _, err := engine.Ingest(ctx, "a.txt", []byte("Content about storage engines."), nil); err != nil {
		t.Fatalf("Ingest(a) error = %v", err)
	}
	if _, err := engine.Ingest(ctx, "b.txt", []byte("Content about query planners."), nil); err != nil {
		t.Fatalf("Ingest(b) error = %v", err)
	}

	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	answer, err := engine.Query(ctx, sess.ID, "how does storage work?", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if answer.Answer != "grounded answer" {
		t.Fatalf("answer = %q", answer.Answer)
	}
	if len(answer.Sources) != 2 || answer.Sources[0] != "a.txt" || answer.Sources[1] != "b.txt" {
		t.Fatalf("sources = %v, want [a.txt b.txt] in retrieval order", answer.Sources)
	}
	if len(answer.Chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(answer.Chunks))
	}
	if answer.Chunks[0].Similarity <= answer.Chunks[1].Similarity {
		t.Fatalf("chunks not in descending similarity: %v vs %v",
			answer.Chunks[0].Similarity, answer.Chunks[1].Similarity)
	}
	if store.lastK != 5 {
		t.Fatalf("k = %d, want configured default 5", store.lastK)
	}

	// The prompt carries the retrieved content and the question.
	prompt := provider.lastReq.Messages[1].Content
	if !strings.Contains(prompt, "storage engines") || !strings.Contains(prompt, "how does storage work?") {
		t.Fatalf("user prompt missing context or question: %q", prompt)
	}
}

func TestQueryCarriesConversationHistory(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{answer: "first answer"}
	engine, sessions := newTestEngine(t, store, provider)
	ctx := context.Background()

	if _, err := engine.Ingest(ctx, "a.txt", []byte("Some content."), nil); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	sess, _ := sessions.Create(ctx)

	if _, err := engine.Query(ctx, sess.ID, "first question", nil, 0); err != nil {
		t.Fatalf("first Query() error = %v", err)
	}

	provider.answer = "second answer"
	if _, err := engine.Query(ctx, sess.ID, "second question", nil, 0); err != nil {
		t.Fatalf("second Query() error = %v", err)
	}

	prompt := provider.lastReq.Messages[1].Content
	if !strings.Contains(prompt, "Human: first question") || !strings.Contains(prompt, "AI: first answer") {
		t.Fatalf("second prompt missing prior turn: %q", prompt)
	}

	messages, err := sessions.Messages(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("transcript length = %d, want 4", len(messages))
	}
}

func TestQuerySessionsIsolated(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{answer: "answer"}
	engine, sessions := newTestEngine(t, store, provider)
	ctx := context.Background()

	if _, err := engine.Ingest(ctx, "a.txt", []byte("Some content."), nil); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	s1, _ := sessions.Create(ctx)
	s2, _ := sessions.Create(ctx)

	if _, err := engine.Query(ctx, s1.ID, "question for session one", nil, 0); err != nil {
		t.Fatalf("Query(s1) error = %v", err)
	}
	if _, err := engine.Query(ctx, s2.ID, "question for session two", nil, 0); err != nil {
		t.Fatalf("Query(s2) error = %v", err)
	}

	prompt := provider.lastReq.Messages[1].Content
	if strings.Contains(prompt, "question for session one") {
		t.Fatalf("session two prompt leaked session one history: %q", prompt)
	}
}

func TestQueryAppliesMetadataFilters(t *testing.T) {
	store := newFakeStore()
	engine, sessions := newTestEngine(t, store, &fakeProvider{answer: "ok"})
	ctx := context.Background()

	if _, err := engine.Ingest(ctx, "a.txt", []byte("Alpha."), map[string]string{"team": "infra"}); err != nil {
		t.Fatalf("Ingest(a) error = %v", err)
	}
	if _, err := engine.Ingest(ctx, "b.txt", []byte("Beta."), map[string]string{"team": "apps"}); err != nil {
		t.Fatalf("Ingest(b) error = %v", err)
	}
	sess, _ := sessions.Create(ctx)

	answer, err := engine.Query(ctx, sess.ID, "anything", map[string]string{"team": "infra"}, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "a.txt" {
		t.Fatalf("filtered sources = %v, want [a.txt]", answer.Sources)
	}
	if store.lastWhere["team"] != "infra" {
		t.Fatalf("filter not passed to store: %v", store.lastWhere)
	}
}

func TestQueryUnknownSession(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeStore(), &fakeProvider{})

	_, err := engine.Query(context.Background(), "no-such-session", "question", nil, 0)
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("Query() error = %v, want ErrUnknownSession", err)
	}
}

func TestQueryRetrievalFailure(t *testing.T) {
	store := newFakeStore()
	store.queryErr = errors.New("connection refused")
	engine, sessions := newTestEngine(t, store, &fakeProvider{answer: "ok"})

	sess, _ := sessions.Create(context.Background())
	_, err := engine.Query(context.Background(), sess.ID, "question", nil, 0)
	if !errors.Is(err, ErrRetrieval) {
		t.Fatalf("Query() error = %v, want ErrRetrieval", err)
	}
}

func TestQueryGenerationFailureKeepsMemoryUnchanged(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{err: errors.New("model overloaded")}
	engine, sessions := newTestEngine(t, store, provider)
	ctx := context.Background()

	if _, err := engine.Ingest(ctx, "a.txt", []byte("Some content."), nil); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	sess, _ := sessions.Create(ctx)

	_, err := engine.Query(ctx, sess.ID, "doomed question", nil, 0)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("Query() error = %v, want ErrGeneration", err)
	}

	// The failed turn must not appear in memory or the transcript.
	provider.err = nil
	provider.answer = "recovered"
	if _, err := engine.Query(ctx, sess.ID, "second question", nil, 0); err != nil {
		t.Fatalf("recovered Query() error = %v", err)
	}
	if strings.Contains(provider.lastReq.Messages[1].Content, "doomed question") {
		t.Fatal("failed turn leaked into conversation history")
	}
	messages, _ := sessions.Messages(ctx, sess.ID)
	if len(messages) != 2 {
		t.Fatalf("transcript length = %d, want 2 (failed turn excluded)", len(messages))
	}
}

func TestQueryEmptyRetrievalStillAnswers(t *testing.T) {
	provider := &fakeProvider{answer: "I don't have enough information in the provided documents to answer that."}
	engine, sessions := newTestEngine(t, newFakeStore(), provider)
	ctx := context.Background()

	sess, _ := sessions.Create(ctx)
	answer, err := engine.Query(ctx, sess.ID, "question about nothing", nil, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(answer.Sources) != 0 || len(answer.Chunks) != 0 {
		t.Fatalf("empty store produced sources %v chunks %d", answer.Sources, len(answer.Chunks))
	}
	if !strings.Contains(provider.lastReq.Messages[1].Content, "(no relevant excerpts found)") {
		t.Fatalf("prompt does not flag empty retrieval: %q", provider.lastReq.Messages[1].Content)
	}
}

func TestListDocumentsAndStats(t *testing.T) {
	store := newFakeStore()
	engine, _ := newTestEngine(t, store, &fakeProvider{})
	ctx := context.Background()

	if _, err := engine.Ingest(ctx, "a.txt", []byte("Alpha."), nil); err != nil {
		t.Fatalf("Ingest(a) error = %v", err)
	}
	if _, err := engine.Ingest(ctx, "b.txt", []byte("Beta."), nil); err != nil {
		t.Fatalf("Ingest(b) error = %v", err)
	}

	names, err := engine.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("ListDocuments() = %v, want 2 names", names)
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalChunks != 2 || stats.TotalDocuments != 2 {
		t.Fatalf("Stats() = %+v, want 2 chunks, 2 documents", stats)
	}
}

func TestOperationsWithNilCollaborators(t *testing.T) {
	engine := NewEngine(Config{Logger: zap.NewNop()})
	ctx := context.Background()

	if _, err := engine.Ingest(ctx, "a.txt", []byte("x"), nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Ingest() error = %v, want ErrNotInitialized", err)
	}
	if _, err := engine.Delete(ctx, "a.txt"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Delete() error = %v, want ErrNotInitialized", err)
	}
	if _, err := engine.Query(ctx, "s", "q", nil, 0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Query() error = %v, want ErrNotInitialized", err)
	}
	if _, err := engine.ListDocuments(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListDocuments() error = %v, want ErrNotInitialized", err)
	}
	if _, err := engine.Stats(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Stats() error = %v, want ErrNotInitialized", err)
	}
}
