package model

// SourceType identifies what kind of site content a chunk was extracted from.
type SourceType string

const (
	SourcePost     SourceType = "post"
	SourceProduct  SourceType = "product"
	SourceTerm     SourceType = "term"
	SourceSite     SourceType = "site"
	SourceFile     SourceType = "file"
	SourceRendered SourceType = "rendered"
	SourceDBQuery  SourceType = "db_query"
	SourceURL      SourceType = "url"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourcePost, SourceProduct, SourceTerm, SourceSite, SourceFile, SourceRendered, SourceDBQuery, SourceURL:
		return true
	}
	return false
}

type EmbeddingRecord struct {
	ID         int64      `json:"id"`
	SourceType SourceType `json:"source_type"`
	SourceID   int64      `json:"source_id"`
	ChunkText  string     `json:"chunk_text"`
	Embedding  []float32  `json:"embedding"`
	Ctime      int64      `json:"ctime"`
}

// SearchMatch is one ranked retrieval result.
type SearchMatch struct {
	ChunkText  string     `json:"chunk_text"`
	SourceType SourceType `json:"source_type"`
	SourceID   int64      `json:"source_id"`
	Similarity float64    `json:"similarity"`
}

// IndexResult reports the outcome of one document-indexing call.
type IndexResult struct {
	ChunksTotal    int    `json:"chunks_total"`
	ChunksEmbedded int    `json:"chunks_embedded"`
	Error          string `json:"error,omitempty"`
}
