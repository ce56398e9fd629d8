package model

const (
	PostStatusPublish = "publish"
	PostStatusDraft   = "draft"

	PostTypePost     = "post"
	PostTypePage     = "page"
	PostTypeProduct  = "product"
	PostTypeRevision = "revision"
	PostTypeAutosave = "autosave"
)

// Post is one entry of the host site's content table (posts, pages and
// product placeholders share it, mirroring how the host stores them).
type Post struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
	URL     string `json:"url"`
	Mtime   int64  `json:"mtime"`
}

type Product struct {
	ID               int64              `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	ShortDescription string             `json:"short_description"`
	SKU              string             `json:"sku"`
	Price            float64            `json:"price"`
	Currency         string             `json:"currency"`
	StockStatus      string             `json:"stock_status"`
	StockQty         *int64             `json:"stock_qty,omitempty"`
	URL              string             `json:"url"`
	Variations       []ProductVariation `json:"variations,omitempty"`
}

type ProductVariation struct {
	ID         int64   `json:"id"`
	ProductID  int64   `json:"product_id"`
	Attributes string  `json:"attributes"`
	SKU        string  `json:"sku"`
	Price      float64 `json:"price"`
}

type Term struct {
	ID            int64  `json:"id"`
	Taxonomy      string `json:"taxonomy"`
	TaxonomyLabel string `json:"taxonomy_label"`
	Name          string `json:"name"`
	Description   string `json:"description"`
}

// SiteMeta is the low-cardinality site-wide metadata indexed as (site, 0).
type SiteMeta struct {
	Name           string `json:"name"`
	Tagline        string `json:"tagline"`
	FrontPageTitle string `json:"front_page_title"`
}
