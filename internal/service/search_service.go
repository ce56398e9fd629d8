package service

import (
	"context"
	"math"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lromeral/sitechat/internal/model"
)

type EmbeddingLister interface {
	ListAll(ctx context.Context) ([]model.EmbeddingRecord, error)
}

// SearchService ranks every stored chunk against a query embedding by
// cosine similarity. Brute force by contract; swapping in an ANN index
// behind the same Search signature would not change callers.
type SearchService struct {
	store EmbeddingLister
	boost float64
}

func NewSearchService(store EmbeddingLister, boost float64) *SearchService {
	if boost <= 0 {
		boost = 1.2
	}
	return &SearchService{store: store, boost: boost}
}

// Search ranks all records and returns the top limit matches. Records whose
// source id equals currentSourceID get their similarity multiplied by the
// boost factor before the final ordering, biasing retrieval toward the page
// the visitor is reading.
func (s *SearchService) Search(ctx context.Context, queryEmb []float32, currentSourceID int64, limit int) ([]model.SearchMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]model.SearchMatch, 0, len(records))
	for _, rec := range records {
		sim := cosineSimilarity(queryEmb, rec.Embedding)
		if currentSourceID != 0 && rec.SourceID == currentSourceID {
			sim *= s.boost
		}
		matches = append(matches, model.SearchMatch{
			ChunkText:  rec.ChunkText,
			SourceType: rec.SourceType,
			SourceID:   rec.SourceID,
			Similarity: sim,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	logutil.GetLogger(ctx).Debug("similarity search done",
		zap.Int("corpus", len(records)),
		zap.Int("returned", len(matches)),
		zap.Int64("current_source_id", currentSourceID),
	)
	return matches, nil
}

// cosineSimilarity tolerates ragged pairs by comparing only the shared
// prefix; well-formed corpora never hit that path. Zero norm reads as 0.
func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
