// Package semantic maintains embeddings for activity descriptions and
// answers similarity queries over them. It is the "semantic search"
// collaborator consumed by the prediction engine.
package semantic

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/contextd/contextd/internal/store"
)

// Match is one similarity search hit.
type Match struct {
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float64           `json:"similarity"`
}

// Index embeds activity descriptions and searches over the stored vectors.
type Index struct {
	db       *store.DB
	embedder Embedder
}

// NewIndex creates an index backed by the given store and embedder.
func NewIndex(db *store.DB, embedder Embedder) *Index {
	return &Index{db: db, embedder: embedder}
}

// Add embeds text and stores the vector under docID. Empty text is skipped
// rather than indexed — there is nothing meaningful to match against.
func (ix *Index) Add(ctx context.Context, docID, text string, metadata map[string]string) error {
	if ix.embedder == nil {
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", docID, err)
	}
	return ix.db.SaveVector(docID, text, metadata, vec, ix.embedder.Model())
}

// SearchSimilar returns up to n stored documents whose similarity to the
// query is at least floor, most similar first. A blank query is a caller
// error.
func (ix *Index) SearchSimilar(ctx context.Context, query string, n int, floor float64) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search similar: empty query")
	}
	if ix.embedder == nil {
		return nil, fmt.Errorf("search similar: no embedder configured")
	}
	if n <= 0 {
		n = 10
	}

	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectors, err := ix.db.AllVectors()
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	var matches []Match
	for _, v := range vectors {
		sim := CosineSimilarity(queryVec, v.Embedding)
		if sim < floor {
			continue
		}
		matches = append(matches, Match{
			Text:       v.Text,
			Metadata:   v.Metadata,
			Similarity: sim,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

// Reindex re-embeds every stored document whose vector was produced by a
// different model than the current embedder. Returns the count re-embedded.
func (ix *Index) Reindex(ctx context.Context) (int, error) {
	if ix.embedder == nil {
		return 0, nil
	}

	vectors, err := ix.db.AllVectors()
	if err != nil {
		return 0, fmt.Errorf("load vectors: %w", err)
	}

	reindexed := 0
	for _, v := range vectors {
		if v.Model == ix.embedder.Model() {
			continue
		}
		vec, err := ix.embedder.Embed(ctx, v.Text)
		if err != nil {
			log.Printf("semantic: reindex %s: %v", v.DocID, err)
			continue
		}
		if err := ix.db.SaveVector(v.DocID, v.Text, v.Metadata, vec, ix.embedder.Model()); err != nil {
			log.Printf("semantic: reindex save %s: %v", v.DocID, err)
			continue
		}
		reindexed++
	}
	return reindexed, nil
}
