package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lromeral/sitechat/internal/model"
)

type fakeLister struct {
	records []model.EmbeddingRecord
}

func (f *fakeLister) ListAll(ctx context.Context) ([]model.EmbeddingRecord, error) {
	return f.records, nil
}

func TestCosineSimilarity(t *testing.T) {
	v := []float32{0.5, 0.5, 0.1}
	neg := []float32{-0.5, -0.5, -0.1}

	require.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
	require.InDelta(t, -1.0, cosineSimilarity(v, neg), 1e-9)
	require.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	require.Equal(t, 0.0, cosineSimilarity(nil, []float32{1, 1}))
	// Symmetric.
	a := []float32{0.3, 0.7, 0.2}
	b := []float32{0.9, 0.1, 0.4}
	require.Equal(t, cosineSimilarity(a, b), cosineSimilarity(b, a))
}

func TestCosineSimilarity_RaggedVectorsUseSharedPrefix(t *testing.T) {
	short := []float32{1, 0}
	long := []float32{1, 0, 5, 5}
	require.Equal(t, cosineSimilarity(short, long[:2]), cosineSimilarity(short, long))
}

func TestSearch_OrdersBySimilarity(t *testing.T) {
	store := &fakeLister{records: []model.EmbeddingRecord{
		{SourceType: model.SourcePost, SourceID: 1, ChunkText: "lejano", Embedding: []float32{0, 1}},
		{SourceType: model.SourcePost, SourceID: 2, ChunkText: "cercano", Embedding: []float32{1, 0.1}},
		{SourceType: model.SourcePost, SourceID: 3, ChunkText: "exacto", Embedding: []float32{1, 0}},
	}}
	svc := NewSearchService(store, 1.2)

	matches, err := svc.Search(context.Background(), []float32{1, 0}, 0, 5)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.Equal(t, "exacto", matches[0].ChunkText)
	require.Equal(t, "cercano", matches[1].ChunkText)
	require.Equal(t, "lejano", matches[2].ChunkText)
}

func TestSearch_CurrentPageBoostReorders(t *testing.T) {
	// Source 2 scores slightly below source 1 raw; the boost flips the order.
	store := &fakeLister{records: []model.EmbeddingRecord{
		{SourceType: model.SourcePost, SourceID: 1, ChunkText: "otro", Embedding: []float32{1, 0.1}},
		{SourceType: model.SourcePost, SourceID: 2, ChunkText: "actual", Embedding: []float32{1, 0.3}},
	}}
	svc := NewSearchService(store, 1.2)

	plain, err := svc.Search(context.Background(), []float32{1, 0}, 0, 5)
	require.NoError(t, err)
	require.Equal(t, "otro", plain[0].ChunkText)

	boosted, err := svc.Search(context.Background(), []float32{1, 0}, 2, 5)
	require.NoError(t, err)
	require.Equal(t, "actual", boosted[0].ChunkText)
	require.Greater(t, boosted[0].Similarity, plain[1].Similarity)
}

func TestSearch_LimitApplied(t *testing.T) {
	var records []model.EmbeddingRecord
	for i := int64(1); i <= 10; i++ {
		records = append(records, model.EmbeddingRecord{SourceID: i, Embedding: []float32{1, 0}})
	}
	svc := NewSearchService(&fakeLister{records: records}, 1.2)

	matches, err := svc.Search(context.Background(), []float32{1, 0}, 0, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
}
