// Package vector provides vector-search and vector-index backends over an
// embedded chromem-go store. Both backends share one Store so indexed
// transcripts are immediately searchable.
package vector

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// StoreConfig holds the embedded store settings.
type StoreConfig struct {
	// PersistPath, when set, persists the store to disk; empty keeps it
	// in memory.
	PersistPath string
	Collection  string
}

// Store wraps a chromem collection.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewStore opens or creates the store. embeddingFunc may be nil, in which
// case chromem's default embedding provider is used.
func NewStore(cfg StoreConfig, embeddingFunc chromem.EmbeddingFunc) (*Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistPath, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("open persistent vector store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", cfg.Collection, err)
	}

	return &Store{db: db, collection: collection}, nil
}

// Count returns the number of stored documents.
func (s *Store) Count() int { return s.collection.Count() }

// SearchBackend serves the vector-search capability.
type SearchBackend struct {
	name  string
	store *Store
}

// NewSearchBackend wraps a store for querying.
func NewSearchBackend(name string, store *Store) *SearchBackend {
	if name == "" {
		name = "chromem-search"
	}
	return &SearchBackend{name: name, store: store}
}

func (b *SearchBackend) Name() string       { return b.name }
func (b *SearchBackend) Capability() string { return types.CapabilitySearch }

// Health succeeds as long as the embedded collection is reachable.
func (b *SearchBackend) Health(ctx context.Context) error {
	if b.store == nil || b.store.collection == nil {
		return fmt.Errorf("vector store not initialized")
	}
	return nil
}

// Invoke reads "query" and optional "top_k" and writes "matches", a list of
// {id, content, similarity, metadata} ranked by similarity.
func (b *SearchBackend) Invoke(ctx context.Context, input types.State) (types.State, error) {
	query := input.String("query")
	if query == "" {
		return nil, fmt.Errorf("input is missing query")
	}

	topK := 5
	switch v := input["top_k"].(type) {
	case int:
		topK = v
	case float64:
		topK = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			topK = n
		}
	}
	if topK <= 0 {
		topK = 5
	}
	// chromem errors when topK exceeds the collection size.
	if count := b.store.collection.Count(); count < topK {
		topK = count
	}
	if topK == 0 {
		return types.State{"matches": []interface{}{}}, nil
	}

	results, err := b.store.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	matches := make([]interface{}, 0, len(results))
	for _, r := range results {
		matches = append(matches, map[string]interface{}{
			"id":         r.ID,
			"content":    r.Content,
			"similarity": r.Similarity,
			"metadata":   r.Metadata,
		})
	}
	return types.State{"matches": matches}, nil
}

// IndexBackend serves the vector-index capability.
type IndexBackend struct {
	name  string
	store *Store
}

// NewIndexBackend wraps a store for writes.
func NewIndexBackend(name string, store *Store) *IndexBackend {
	if name == "" {
		name = "chromem-index"
	}
	return &IndexBackend{name: name, store: store}
}

func (b *IndexBackend) Name() string       { return b.name }
func (b *IndexBackend) Capability() string { return types.CapabilityIndex }

func (b *IndexBackend) Health(ctx context.Context) error {
	if b.store == nil || b.store.collection == nil {
		return fmt.Errorf("vector store not initialized")
	}
	return nil
}

// Invoke reads "content" plus optional "id" and "metadata" and stores one
// document, returning its id.
func (b *IndexBackend) Invoke(ctx context.Context, input types.State) (types.State, error) {
	content := input.String("content")
	if content == "" {
		return nil, fmt.Errorf("input is missing content")
	}

	id := input.String("id")
	if id == "" {
		id = uuid.NewString()
	}

	metadata := map[string]string{}
	if raw, ok := input["metadata"].(map[string]interface{}); ok {
		for k, v := range raw {
			metadata[k] = fmt.Sprint(v)
		}
	}

	err := b.store.collection.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("index document: %w", err)
	}

	return types.State{"id": id, "indexed": true}, nil
}
