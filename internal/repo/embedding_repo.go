package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/lromeral/sitechat/internal/model"
	"github.com/lromeral/sitechat/internal/pkg/dbutil"
)

// EmbeddingRepo owns the chatbot_embeddings table. Callers delete-before-
// insert per source to keep re-indexing idempotent.
type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) Insert(ctx context.Context, rec *model.EmbeddingRecord) error {
	ctime := rec.Ctime
	if ctime == 0 {
		ctime = time.Now().Unix()
	}
	data := map[string]interface{}{
		"source_type": string(rec.SourceType),
		"source_id":   rec.SourceID,
		"chunk_text":  rec.ChunkText,
		"embedding":   pgvector.NewVector(rec.Embedding),
		"ctime":       ctime,
	}
	sqlStr, args, err := builder.BuildInsert("chatbot_embeddings", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *EmbeddingRepo) DeleteBySource(ctx context.Context, sourceType model.SourceType, sourceID int64) error {
	where := map[string]interface{}{
		"source_type": string(sourceType),
		"source_id":   sourceID,
	}
	sqlStr, args, err := builder.BuildDelete("chatbot_embeddings", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// DeleteAllExcept bulk-clears the table while preserving the given source
// types. A full reindex uses it to keep user-uploaded documents alive.
func (r *EmbeddingRepo) DeleteAllExcept(ctx context.Context, keep []model.SourceType) error {
	if len(keep) == 0 {
		_, err := r.db.ExecContext(ctx, `DELETE FROM chatbot_embeddings`)
		return err
	}
	keepStrs := make([]string, 0, len(keep))
	for _, t := range keep {
		keepStrs = append(keepStrs, string(t))
	}
	query, args, err := sqlx.In(`DELETE FROM chatbot_embeddings WHERE source_type NOT IN (?)`, keepStrs)
	if err != nil {
		return err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// ListAll does a full scan; retrieval ranks every stored chunk in memory,
// which holds up at the corpus sizes this service targets.
func (r *EmbeddingRepo) ListAll(ctx context.Context) ([]model.EmbeddingRecord, error) {
	const query = `
		SELECT id, source_type, source_id, chunk_text, embedding, ctime
		FROM chatbot_embeddings
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.EmbeddingRecord
	for rows.Next() {
		var item model.EmbeddingRecord
		var sourceType string
		var embedding pgvector.Vector
		if err := rows.Scan(&item.ID, &sourceType, &item.SourceID, &item.ChunkText, &embedding, &item.Ctime); err != nil {
			return nil, err
		}
		item.SourceType = model.SourceType(sourceType)
		item.Embedding = embedding.Slice()
		results = append(results, item)
	}
	return results, rows.Err()
}

func (r *EmbeddingRepo) CountBySource(ctx context.Context, sourceType model.SourceType, sourceID int64) (int64, error) {
	const query = `
		SELECT COUNT(*) FROM chatbot_embeddings
		WHERE source_type = $1 AND source_id = $2
	`
	row := r.db.QueryRowContext(ctx, query, string(sourceType), sourceID)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
