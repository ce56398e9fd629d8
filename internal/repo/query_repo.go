package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// QueryRepo executes the administrator-configured read-only queries. Every
// query must already have passed the SELECT-only validation; the row cap is
// a second line of defense against runaway result sets.
type QueryRepo struct {
	db *sqlx.DB
}

func NewQueryRepo(db *sql.DB) *QueryRepo {
	return &QueryRepo{db: sqlx.NewDb(db, "postgres")}
}

func (r *QueryRepo) RunSelect(ctx context.Context, query string, rowLimit int) ([]map[string]interface{}, error) {
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []map[string]interface{}
	for rows.Next() {
		if rowLimit > 0 && len(results) >= rowLimit {
			break
		}
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
