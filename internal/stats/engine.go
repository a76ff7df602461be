// Package stats shapes flat aggregation rows from storage into the
// nested period/category/subcategory structures the API serves.
package stats

import (
	"context"
	"fmt"

	"yeongsu/internal/core"
	"yeongsu/internal/storage"
)

// RowSource is the slice of the repository the engine reads from.
type RowSource interface {
	StatisticsRows(ctx context.Context, p core.Period) ([]storage.StatisticsRow, error)
	TrendRows(ctx context.Context, category string, p core.Period) ([]storage.TrendRow, error)
	InsightRows(ctx context.Context) ([]storage.InsightRow, error)
}

type Engine struct {
	source RowSource
}

func NewEngine(source RowSource) *Engine {
	return &Engine{source: source}
}

// Statistics groups item spend by (period, category, subcategory) and
// rolls totals up to the category and period level. Row order from
// storage is preserved: periods descending, totals descending within a
// period.
func (e *Engine) Statistics(ctx context.Context, p core.Period) ([]core.PeriodStats, error) {
	rows, err := e.source.StatisticsRows(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("statistics rows: %w", err)
	}

	var out []core.PeriodStats
	for _, row := range rows {
		if len(out) == 0 || out[len(out)-1].Period != row.Period {
			out = append(out, core.PeriodStats{Period: row.Period})
		}
		ps := &out[len(out)-1]

		var cs *core.CategoryStats
		for i := range ps.Categories {
			if ps.Categories[i].Name == row.Category {
				cs = &ps.Categories[i]
				break
			}
		}
		if cs == nil {
			ps.Categories = append(ps.Categories, core.CategoryStats{Name: row.Category})
			cs = &ps.Categories[len(ps.Categories)-1]
		}

		cs.Subcategories = append(cs.Subcategories, core.SubcategoryStats{
			Name:  row.Subcategory,
			Count: row.Count,
			Total: core.Money{Won: row.Total},
		})
		cs.Total.Won += row.Total
		ps.Total.Won += row.Total
	}
	return out, nil
}

// Trends returns the ordered (period, total) sequence with its grand
// total, optionally narrowed to one main category.
func (e *Engine) Trends(ctx context.Context, category string, p core.Period) (core.TrendReport, error) {
	rows, err := e.source.TrendRows(ctx, category, p)
	if err != nil {
		return core.TrendReport{}, fmt.Errorf("trend rows: %w", err)
	}

	var report core.TrendReport
	for _, row := range rows {
		report.Points = append(report.Points, core.TrendPoint{
			Period: row.Period,
			Total:  core.Money{Won: row.Total},
		})
		report.Total.Won += row.Total
	}
	return report, nil
}

// Insights summarizes each main category across all history.
func (e *Engine) Insights(ctx context.Context) ([]core.CategoryInsight, error) {
	rows, err := e.source.InsightRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("insight rows: %w", err)
	}

	out := make([]core.CategoryInsight, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.CategoryInsight{
			Name:    row.Category,
			Count:   row.Count,
			Total:   core.Money{Won: row.Total},
			Average: row.Average,
			Min:     core.Money{Won: row.Min},
			Max:     core.Money{Won: row.Max},
		})
	}
	return out, nil
}
