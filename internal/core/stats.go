package core

// SubcategoryStats is the per-leaf aggregate inside one period bucket.
type SubcategoryStats struct {
	Name  string
	Count int64
	Total Money
}

// CategoryStats rolls subcategory aggregates up to a main category.
type CategoryStats struct {
	Name          string
	Total         Money
	Subcategories []SubcategoryStats
}

// PeriodStats is one period bucket with category breakdowns and the
// period-level total.
type PeriodStats struct {
	Period     string
	Total      Money
	Categories []CategoryStats
}

// TrendPoint is one (period, total) pair in a spend trend.
type TrendPoint struct {
	Period string
	Total  Money
}

// TrendReport is an ordered trend sequence plus its grand total.
type TrendReport struct {
	Points []TrendPoint
	Total  Money
}

// CategoryInsight summarizes one main category across all history.
type CategoryInsight struct {
	Name    string
	Count   int64
	Total   Money
	Average float64
	Min     Money
	Max     Money
}
