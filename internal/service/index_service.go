package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lromeral/sitechat/internal/ai"
	"github.com/lromeral/sitechat/internal/config"
	"github.com/lromeral/sitechat/internal/model"
	appErr "github.com/lromeral/sitechat/internal/pkg/errors"
	"github.com/lromeral/sitechat/internal/repo"
)

type EmbeddingStore interface {
	Insert(ctx context.Context, rec *model.EmbeddingRecord) error
	DeleteBySource(ctx context.Context, sourceType model.SourceType, sourceID int64) error
	DeleteAllExcept(ctx context.Context, keep []model.SourceType) error
}

type ContentSource interface {
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	ListPublishedPosts(ctx context.Context, offset, limit int) ([]model.Post, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetTerm(ctx context.Context, id int64, taxonomy string) (*model.Term, error)
	ListTerms(ctx context.Context) ([]model.Term, error)
}

type QueryRunner interface {
	RunSelect(ctx context.Context, query string, rowLimit int) ([]map[string]interface{}, error)
}

// IndexService turns site content into embedding rows. Every operation is
// delete-before-insert per source, so repeating a call replaces rather
// than accumulates. Chunk-level embedding failures are counted, never
// fatal.
type IndexService struct {
	store    EmbeddingStore
	content  ContentSource
	options  OptionGetter
	queries  QueryRunner
	embedder ai.IEmbedder
	cfg      config.IndexerConfig
}

func NewIndexService(store EmbeddingStore, content ContentSource, options OptionGetter, queries QueryRunner, embedder ai.IEmbedder, cfg config.IndexerConfig) *IndexService {
	return &IndexService{
		store:    store,
		content:  content,
		options:  options,
		queries:  queries,
		embedder: embedder,
		cfg:      cfg,
	}
}

func (s *IndexService) IndexPost(ctx context.Context, postID int64) error {
	logger := logutil.GetLogger(ctx).With(zap.Int64("post_id", postID))
	post, err := s.content.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.Status != model.PostStatusPublish ||
		post.Type == model.PostTypeRevision || post.Type == model.PostTypeAutosave {
		logger.Debug("post skipped", zap.String("status", post.Status), zap.String("type", post.Type))
		return nil
	}
	if post.Type == model.PostTypeProduct {
		return s.IndexProduct(ctx, post.ID)
	}
	result := s.indexText(ctx, model.SourcePost, post.ID, post.Title+" "+post.Content, 0)
	logger.Info("post indexed",
		zap.Int("chunks_total", result.ChunksTotal),
		zap.Int("chunks_embedded", result.ChunksEmbedded),
	)
	return nil
}

func (s *IndexService) IndexProduct(ctx context.Context, productID int64) error {
	logger := logutil.GetLogger(ctx).With(zap.Int64("product_id", productID))
	product, err := s.content.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	result := s.indexText(ctx, model.SourceProduct, product.ID, productText(product), 0)
	logger.Info("product indexed",
		zap.Int("chunks_total", result.ChunksTotal),
		zap.Int("chunks_embedded", result.ChunksEmbedded),
	)
	return nil
}

func (s *IndexService) IndexTerm(ctx context.Context, termID int64, taxonomy string) error {
	term, err := s.content.GetTerm(ctx, termID, taxonomy)
	if err != nil {
		return err
	}
	label := term.TaxonomyLabel
	if label == "" {
		label = term.Taxonomy
	}
	text := fmt.Sprintf("%s: %s %s", label, term.Name, term.Description)
	result := s.indexText(ctx, model.SourceTerm, term.ID, text, 0)
	logutil.GetLogger(ctx).Info("term indexed",
		zap.Int64("term_id", term.ID),
		zap.String("taxonomy", term.Taxonomy),
		zap.Int("chunks_embedded", result.ChunksEmbedded),
	)
	return nil
}

func (s *IndexService) IndexSiteMeta(ctx context.Context) error {
	var parts []string
	for _, name := range []string{repo.OptionSiteName, repo.OptionSiteTagline, repo.OptionFrontPageTitle} {
		value, err := s.options.Get(ctx, name)
		if err != nil {
			return err
		}
		if value != "" {
			parts = append(parts, value)
		}
	}
	result := s.indexText(ctx, model.SourceSite, 0, strings.Join(parts, " "), 0)
	logutil.GetLogger(ctx).Info("site metadata indexed", zap.Int("chunks_embedded", result.ChunksEmbedded))
	return nil
}

// IndexDocument indexes externally extracted text (uploaded files, rendered
// pages, crawled URLs). maxChunks > 0 bounds embedding work for quota
// control; the result still reports the full candidate count.
func (s *IndexService) IndexDocument(ctx context.Context, sourceID int64, text string, sourceType model.SourceType, maxChunks int) model.IndexResult {
	if !sourceType.Valid() {
		sourceType = model.SourceFile
	}
	if strings.TrimSpace(text) == "" {
		return model.IndexResult{ChunksTotal: 0, Error: "document has no extractable text"}
	}
	return s.indexText(ctx, sourceType, sourceID, text, maxChunks)
}

// IndexRendered indexes the rendered form of a dynamic page.
func (s *IndexService) IndexRendered(ctx context.Context, postID int64, renderedHTML string) model.IndexResult {
	return s.IndexDocument(ctx, postID, renderedHTML, model.SourceRendered, 0)
}

func (s *IndexService) DeleteSource(ctx context.Context, sourceType model.SourceType, sourceID int64) error {
	if !sourceType.Valid() {
		return appErr.ErrInvalid
	}
	return s.store.DeleteBySource(ctx, sourceType, sourceID)
}

// IndexCustomQueries runs the configured read-only queries and indexes
// their results. Queries failing validation are skipped, not fatal.
func (s *IndexService) IndexCustomQueries(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	for i, query := range s.cfg.CustomQueries {
		sourceID := int64(i + 1)
		if err := ValidateCustomQuery(query); err != nil {
			logger.Warn("custom query rejected", zap.Int64("query_no", sourceID), zap.Error(err))
			continue
		}
		rows, err := s.queries.RunSelect(ctx, query, s.cfg.QueryRowLimit)
		if err != nil {
			logger.Warn("custom query failed", zap.Int64("query_no", sourceID), zap.Error(err))
			continue
		}
		result := s.indexText(ctx, model.SourceDBQuery, sourceID, formatQueryResults(query, rows), 0)
		logger.Info("custom query indexed",
			zap.Int64("query_no", sourceID),
			zap.Int("rows", len(rows)),
			zap.Int("chunks_embedded", result.ChunksEmbedded),
		)
	}
	return nil
}

// ReindexAll wipes everything except uploaded documents and rebuilds the
// whole corpus. Safe to repeat; concurrent runs are wasteful, not
// corrupting.
func (s *IndexService) ReindexAll(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	if err := s.store.DeleteAllExcept(ctx, []model.SourceType{model.SourceFile}); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if err := s.IndexSiteMeta(ctx); err != nil {
		logger.Warn("site metadata reindex failed", zap.Error(err))
	}

	indexed := 0
	for offset := 0; ; offset += s.cfg.PageSize {
		posts, err := s.content.ListPublishedPosts(ctx, offset, s.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("list posts at offset %d: %w", offset, err)
		}
		for _, post := range posts {
			var err error
			if post.Type == model.PostTypeProduct {
				err = s.IndexProduct(ctx, post.ID)
			} else {
				result := s.indexText(ctx, model.SourcePost, post.ID, post.Title+" "+post.Content, 0)
				if result.Error != "" {
					logger.Warn("post partially indexed", zap.Int64("post_id", post.ID), zap.String("error", result.Error))
				}
			}
			if err != nil {
				logger.Warn("post reindex failed", zap.Int64("post_id", post.ID), zap.Error(err))
				continue
			}
			indexed++
		}
		if len(posts) < s.cfg.PageSize {
			break
		}
	}

	terms, err := s.content.ListTerms(ctx)
	if err != nil {
		return fmt.Errorf("list terms: %w", err)
	}
	for _, term := range terms {
		if err := s.IndexTerm(ctx, term.ID, term.Taxonomy); err != nil {
			logger.Warn("term reindex failed", zap.Int64("term_id", term.ID), zap.Error(err))
		}
	}

	if err := s.IndexCustomQueries(ctx); err != nil {
		logger.Warn("custom query reindex failed", zap.Error(err))
	}

	logger.Info("full reindex completed", zap.Int("posts_indexed", indexed), zap.Int("terms", len(terms)))
	return nil
}

// indexText is the shared delete-chunk-embed-store pipeline.
func (s *IndexService) indexText(ctx context.Context, sourceType model.SourceType, sourceID int64, text string, maxChunks int) model.IndexResult {
	logger := logutil.GetLogger(ctx).With(
		zap.String("source_type", string(sourceType)),
		zap.Int64("source_id", sourceID),
	)
	chunks := ai.ChunkText(text, s.cfg.ChunkChars)
	result := model.IndexResult{ChunksTotal: len(chunks)}
	if len(chunks) == 0 {
		result.Error = "document has no extractable text"
		return result
	}
	if err := s.store.DeleteBySource(ctx, sourceType, sourceID); err != nil {
		result.Error = fmt.Sprintf("clear previous chunks: %v", err)
		logger.Error("delete previous chunks failed", zap.Error(err))
		return result
	}
	if maxChunks > 0 && len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	if s.embedder == nil {
		result.Error = "no embedding provider configured"
		logger.Warn("indexing skipped: no embedding provider configured")
		return result
	}
	for _, chunk := range chunks {
		emb, err := s.embedder.Embed(ctx, chunk, ai.TaskRetrievalDocument)
		if err != nil {
			result.Error = err.Error()
			logger.Warn("chunk embedding failed", zap.Error(err))
			continue
		}
		if err := s.store.Insert(ctx, &model.EmbeddingRecord{
			SourceType: sourceType,
			SourceID:   sourceID,
			ChunkText:  chunk,
			Embedding:  emb,
		}); err != nil {
			result.Error = err.Error()
			logger.Warn("chunk store failed", zap.Error(err))
			continue
		}
		result.ChunksEmbedded++
	}
	return result
}

func productText(p *model.Product) string {
	var sb strings.Builder
	sb.WriteString("Producto: " + p.Name + "\n")
	if p.Description != "" {
		sb.WriteString(p.Description + "\n")
	}
	if p.ShortDescription != "" {
		sb.WriteString(p.ShortDescription + "\n")
	}
	sb.WriteString(fmt.Sprintf("Precio: %.2f %s\n", p.Price, p.Currency))
	if p.SKU != "" {
		sb.WriteString("SKU: " + p.SKU + "\n")
	}
	if p.StockQty != nil {
		sb.WriteString(fmt.Sprintf("Stock: %d unidades\n", *p.StockQty))
	} else if p.StockStatus != "" {
		sb.WriteString("Stock: " + p.StockStatus + "\n")
	}
	for _, v := range p.Variations {
		sb.WriteString(fmt.Sprintf("Variante: %s - %.2f %s", v.Attributes, v.Price, p.Currency))
		if v.SKU != "" {
			sb.WriteString(" (SKU " + v.SKU + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatQueryResults(query string, rows []map[string]interface{}) string {
	var sb strings.Builder
	sb.WriteString("Consulta: " + query + "\nResultados:\n")
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}
