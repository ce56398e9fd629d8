package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/lromeral/sitechat/internal/model"
	"github.com/lromeral/sitechat/internal/pkg/dbutil"
	appErr "github.com/lromeral/sitechat/internal/pkg/errors"
)

// ContentRepo reads the host site's content tables. The chatbot never
// writes through it.
type ContentRepo struct {
	db *sql.DB
}

func NewContentRepo(db *sql.DB) *ContentRepo {
	return &ContentRepo{db: db}
}

func (r *ContentRepo) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	where := map[string]interface{}{"id": id}
	fields := []string{"id", "post_type", "status", "title", "content", "excerpt", "url", "mtime"}
	sqlStr, args, err := builder.BuildSelect("site_posts", where, fields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var post model.Post
	if err := row.Scan(&post.ID, &post.Type, &post.Status, &post.Title, &post.Content, &post.Excerpt, &post.URL, &post.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// ListPublishedPosts pages through every published entry of the public post
// types, ordered by id so reindex batches are stable.
func (r *ContentRepo) ListPublishedPosts(ctx context.Context, offset, limit int) ([]model.Post, error) {
	const query = `
		SELECT id, post_type, status, title, content, excerpt, url, mtime
		FROM site_posts
		WHERE status = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, model.PostStatusPublish, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []model.Post
	for rows.Next() {
		var post model.Post
		if err := rows.Scan(&post.ID, &post.Type, &post.Status, &post.Title, &post.Content, &post.Excerpt, &post.URL, &post.Mtime); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *ContentRepo) ListRecentPosts(ctx context.Context, limit int) ([]model.Post, error) {
	const query = `
		SELECT id, post_type, status, title, content, excerpt, url, mtime
		FROM site_posts
		WHERE status = $1
		ORDER BY mtime DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, model.PostStatusPublish, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []model.Post
	for rows.Next() {
		var post model.Post
		if err := rows.Scan(&post.ID, &post.Type, &post.Status, &post.Title, &post.Content, &post.Excerpt, &post.URL, &post.Mtime); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *ContentRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	const query = `
		SELECT id, name, description, short_description, sku, price, currency, stock_status, stock_qty, url
		FROM site_products
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, id)
	var product model.Product
	if err := row.Scan(&product.ID, &product.Name, &product.Description, &product.ShortDescription,
		&product.SKU, &product.Price, &product.Currency, &product.StockStatus, &product.StockQty, &product.URL); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	variations, err := r.listVariations(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Variations = variations
	return &product, nil
}

func (r *ContentRepo) listVariations(ctx context.Context, productID int64) ([]model.ProductVariation, error) {
	const query = `
		SELECT id, product_id, attributes, sku, price
		FROM site_product_variations
		WHERE product_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variations []model.ProductVariation
	for rows.Next() {
		var v model.ProductVariation
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Attributes, &v.SKU, &v.Price); err != nil {
			return nil, err
		}
		variations = append(variations, v)
	}
	return variations, rows.Err()
}

// SearchProducts matches product names against any of the keywords, for the
// deterministic no-provider fallback.
func (r *ContentRepo) SearchProducts(ctx context.Context, keywords []string, limit int) ([]model.Product, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(keywords))
	args := make([]interface{}, 0, len(keywords)+1)
	for _, kw := range keywords {
		conds = append(conds, "name ILIKE ?")
		args = append(args, "%"+kw+"%")
	}
	query := `
		SELECT id, name, description, short_description, sku, price, currency, stock_status, stock_qty, url
		FROM site_products
		WHERE ` + strings.Join(conds, " OR ") + `
		ORDER BY id
		LIMIT ?`
	args = append(args, limit)
	query, args = dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []model.Product
	for rows.Next() {
		var product model.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Description, &product.ShortDescription,
			&product.SKU, &product.Price, &product.Currency, &product.StockStatus, &product.StockQty, &product.URL); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (r *ContentRepo) GetTerm(ctx context.Context, id int64, taxonomy string) (*model.Term, error) {
	const query = `
		SELECT id, taxonomy, taxonomy_label, name, description
		FROM site_terms
		WHERE id = $1 AND taxonomy = $2
	`
	row := r.db.QueryRowContext(ctx, query, id, taxonomy)
	var term model.Term
	if err := row.Scan(&term.ID, &term.Taxonomy, &term.TaxonomyLabel, &term.Name, &term.Description); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &term, nil
}

func (r *ContentRepo) ListTerms(ctx context.Context) ([]model.Term, error) {
	const query = `
		SELECT id, taxonomy, taxonomy_label, name, description
		FROM site_terms
		ORDER BY taxonomy, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var terms []model.Term
	for rows.Next() {
		var term model.Term
		if err := rows.Scan(&term.ID, &term.Taxonomy, &term.TaxonomyLabel, &term.Name, &term.Description); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

// TitleFor resolves a human-readable title for a stored chunk's source,
// used for conversation topic inference.
func (r *ContentRepo) TitleFor(ctx context.Context, sourceType model.SourceType, sourceID int64) (string, error) {
	switch sourceType {
	case model.SourcePost, model.SourceRendered:
		post, err := r.GetPost(ctx, sourceID)
		if err != nil {
			return "", err
		}
		return post.Title, nil
	case model.SourceProduct:
		const query = `SELECT name FROM site_products WHERE id = $1`
		var name string
		if err := r.db.QueryRowContext(ctx, query, sourceID).Scan(&name); err != nil {
			if err == sql.ErrNoRows {
				return "", appErr.ErrNotFound
			}
			return "", err
		}
		return name, nil
	case model.SourceTerm:
		const query = `SELECT name FROM site_terms WHERE id = $1`
		var name string
		if err := r.db.QueryRowContext(ctx, query, sourceID).Scan(&name); err != nil {
			if err == sql.ErrNoRows {
				return "", appErr.ErrNotFound
			}
			return "", err
		}
		return name, nil
	}
	return "", appErr.ErrNotFound
}
