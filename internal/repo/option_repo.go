package repo

import (
	"context"
	"database/sql"
)

// Option names the chatbot persists between runs.
const (
	OptionPreferredProvider = "chatbot_preferred_provider"
	OptionSiteName          = "site_name"
	OptionSiteTagline       = "site_tagline"
	OptionFrontPageTitle    = "front_page_title"
)

type OptionRepo struct {
	db *sql.DB
}

func NewOptionRepo(db *sql.DB) *OptionRepo {
	return &OptionRepo{db: db}
}

// Get returns "" for unset options.
func (r *OptionRepo) Get(ctx context.Context, name string) (string, error) {
	const query = `SELECT value FROM chatbot_options WHERE name = $1`
	row := r.db.QueryRowContext(ctx, query, name)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (r *OptionRepo) Set(ctx context.Context, name, value string) error {
	const query = `
		INSERT INTO chatbot_options (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := r.db.ExecContext(ctx, query, name, value)
	return err
}

// Preferred and SetPreferred satisfy the embed chain's preference contract.
func (r *OptionRepo) Preferred(ctx context.Context) (string, error) {
	return r.Get(ctx, OptionPreferredProvider)
}

func (r *OptionRepo) SetPreferred(ctx context.Context, name string) error {
	return r.Set(ctx, OptionPreferredProvider, name)
}
