package vectordb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/chatchai-k/docqa/internal/embeddings"
)

// ChromemStore implements Store using chromem-go, persisted to disk so
// ingested chunks survive process restarts. Writes are serialized: the
// removed-count in DeleteWhere is a collection-size delta and must not
// observe another writer between its two measurements.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
	writeMu    sync.Mutex
}

// NewChromemStore opens (or creates) a persistent chromem database
// under path and the named collection inside it.
func NewChromemStore(path, collection string, embedder embeddings.Embedder) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, fmt.Errorf("open vector db at %s: %w", path, err)
	}
	return newStore(db, collection, embedder)
}

// NewMemoryChromemStore creates an in-memory store, used in tests.
func NewMemoryChromemStore(collection string, embedder embeddings.Embedder) (*ChromemStore, error) {
	return newStore(chromem.NewDB(), collection, embedder)
}

func newStore(db *chromem.DB, collection string, embedder embeddings.Embedder) (*ChromemStore, error) {
	ef := embeddings.ToChromemFunc(embedder)
	col, err := db.GetOrCreateCollection(collection, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", collection, err)
	}
	return &ChromemStore{db: db, collection: col, embedFunc: ef}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		}
	}

	if err := s.collection.AddDocuments(ctx, chromDocs, 1); err != nil {
		return classify("add documents", err)
	}
	return nil
}

func (s *ChromemStore) DeleteWhere(ctx context.Context, field, value string) (int, error) {
	// chromem's Delete does not report a count, so it is derived from
	// the collection size before and after. writeMu keeps other writers
	// out between the two measurements.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	before := s.collection.Count()
	if before == 0 {
		return 0, nil
	}
	if err := s.collection.Delete(ctx, map[string]string{field: value}, nil); err != nil {
		return 0, classify("delete", err)
	}
	return before - s.collection.Count(), nil
}

func (s *ChromemStore) Query(ctx context.Context, query string, k int, where map[string]string) ([]Result, error) {
	if k <= 0 {
		k = 1
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	if len(where) == 0 {
		where = nil
	}

	results, err := s.collection.Query(ctx, query, k, where, nil)
	if err != nil {
		return nil, classify("query", err)
	}

	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

func (s *ChromemStore) DistinctValues(ctx context.Context, field string) ([]string, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	// chromem has no metadata scan, so query with the collection size
	// as the limit to visit every record.
	results, err := s.collection.Query(ctx, field, count, nil, nil)
	if err != nil {
		return nil, classify("scan", err)
	}

	seen := make(map[string]bool)
	var values []string
	for _, r := range results {
		v, ok := r.Metadata[field]
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// classify wraps chromem errors, tagging dimensionality mismatches so
// callers can distinguish schema problems from availability problems.
func classify(op string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "dimension") {
		return fmt.Errorf("chromem %s: %w: %v", op, ErrSchema, err)
	}
	return fmt.Errorf("chromem %s: %w", op, err)
}
