package storage

import (
	"context"
	"fmt"

	"yeongsu/internal/core"
)

// periodFormat maps a period to its strftime bucket format. Unknown
// periods fall back to monthly. The format is bound as a query
// parameter; caller input never reaches the query text.
func periodFormat(p core.Period) string {
	switch p {
	case core.Daily:
		return "%Y-%m-%d"
	case core.Yearly:
		return "%Y"
	default:
		return "%Y-%m"
	}
}

// StatisticsRow is one (period, category, subcategory) aggregate as it
// comes out of SQLite, ordered period descending then total descending.
type StatisticsRow struct {
	Period      string
	Category    string
	Subcategory string
	Count       int64
	Total       int64
}

func (r *SQLiteRepository) StatisticsRows(ctx context.Context, p core.Period) ([]StatisticsRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT strftime(?, r.date) AS period,
		        mc.name,
		        sc.name,
		        COUNT(*),
		        SUM(i.amount) AS total
		 FROM receipts r
		 JOIN items i ON r.id = i.receipt_id
		 JOIN main_categories mc ON i.main_category_id = mc.id
		 JOIN sub_categories sc ON i.sub_category_id = sc.id
		 GROUP BY period, mc.name, sc.name
		 ORDER BY period DESC, total DESC`,
		periodFormat(p))
	if err != nil {
		return nil, fmt.Errorf("statistics query: %w", err)
	}
	defer rows.Close()

	var out []StatisticsRow
	for rows.Next() {
		var row StatisticsRow
		if err := rows.Scan(&row.Period, &row.Category, &row.Subcategory, &row.Count, &row.Total); err != nil {
			return nil, fmt.Errorf("scan statistics row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TrendRow is one (period, total) aggregate, ordered period ascending.
type TrendRow struct {
	Period string
	Total  int64
}

// TrendRows buckets item spend by period. A non-empty category narrows
// the items to that main category before bucketing.
func (r *SQLiteRepository) TrendRows(ctx context.Context, category string, p core.Period) ([]TrendRow, error) {
	query := `SELECT strftime(?, r.date) AS period, SUM(i.amount)
	          FROM receipts r
	          JOIN items i ON r.id = i.receipt_id
	          JOIN main_categories mc ON i.main_category_id = mc.id`
	args := []any{periodFormat(p)}
	if category != "" {
		query += ` WHERE mc.name = ?`
		args = append(args, category)
	}
	query += ` GROUP BY period ORDER BY period`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trends query: %w", err)
	}
	defer rows.Close()

	var out []TrendRow
	for rows.Next() {
		var row TrendRow
		if err := rows.Scan(&row.Period, &row.Total); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// InsightRow is the all-history aggregate of one main category.
type InsightRow struct {
	Category string
	Count    int64
	Total    int64
	Average  float64
	Min      int64
	Max      int64
}

func (r *SQLiteRepository) InsightRows(ctx context.Context) ([]InsightRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT mc.name,
		        COUNT(*),
		        SUM(i.amount),
		        AVG(i.amount),
		        MIN(i.amount),
		        MAX(i.amount)
		 FROM items i
		 JOIN main_categories mc ON i.main_category_id = mc.id
		 GROUP BY mc.name
		 ORDER BY mc.id`)
	if err != nil {
		return nil, fmt.Errorf("insights query: %w", err)
	}
	defer rows.Close()

	var out []InsightRow
	for rows.Next() {
		var row InsightRow
		if err := rows.Scan(&row.Category, &row.Count, &row.Total, &row.Average, &row.Min, &row.Max); err != nil {
			return nil, fmt.Errorf("scan insight row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
