package gormrepository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"datagage/internal/repository"
)

const salesTable = "sales"

var (
	granularities = map[string]string{
		"day":   "day",
		"week":  "week",
		"month": "month",
	}
	seriesMetrics = map[string]string{
		"revenue": "COALESCE(SUM(total),0)",
		"orders":  "COUNT(*)",
		"items":   "COALESCE(SUM(quantity),0)",
	}
)

func (s *Store) salesQuery(ctx context.Context, f repository.SalesFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Table(salesTable)
	if !f.From.IsZero() {
		query = query.Where("sale_date >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		query = query.Where("sale_date < ?", f.To.UTC())
	}
	if v, ok := filterValue(f.Product); ok {
		query = query.Where("product = ?", v)
	}
	if v, ok := filterValue(f.Customer); ok {
		query = query.Where("customer_name = ?", v)
	}
	return query
}

func (s *Store) SalesTotals(ctx context.Context, window repository.SalesWindow) (repository.SalesTotals, error) {
	if s == nil || s.db == nil {
		return repository.SalesTotals{}, gorm.ErrInvalidDB
	}
	var row repository.SalesTotals
	err := s.salesQuery(ctx, window).
		Select(`
			COALESCE(SUM(total),0) AS revenue,
			COUNT(*) AS orders,
			COUNT(DISTINCT customer_name) AS unique_customers,
			COALESCE(SUM(quantity),0) AS items_sold
		`).
		Scan(&row).Error
	if err != nil {
		return repository.SalesTotals{}, err
	}
	return row, nil
}

func (s *Store) SalesDetail(ctx context.Context, filter repository.SalesFilter) ([]repository.SalesDetailRow, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var rows []repository.SalesDetailRow
	err := s.salesQuery(ctx, filter).
		Select(`
			DATE_TRUNC('month', sale_date)::date AS month,
			product,
			COUNT(*) AS total_orders,
			COALESCE(SUM(quantity),0) AS items_sold,
			ROUND(SUM(total)::numeric, 2) AS total_revenue,
			COUNT(DISTINCT customer_name) AS unique_customers,
			ROUND(AVG(total)::numeric, 2) AS avg_order_value
		`).
		Group("1, 2").
		Order("1 DESC, 2").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) SalesTimeSeries(ctx context.Context, params repository.TimeSeriesParams) ([]repository.TimeSeriesPoint, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	unit, ok := granularities[params.Granularity]
	if !ok {
		return nil, fmt.Errorf("unsupported granularity %q", params.Granularity)
	}
	expr, ok := seriesMetrics[params.Metric]
	if !ok {
		return nil, fmt.Errorf("unsupported metric %q", params.Metric)
	}
	var rows []repository.TimeSeriesPoint
	err := s.salesQuery(ctx, repository.SalesFilter{From: params.From}).
		Select(fmt.Sprintf("DATE_TRUNC('%s', sale_date) AS time_bucket, %s AS metric_value", unit, expr)).
		Group("1").
		Order("1 ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SalesEventCounts counts orders, items and customers whose first purchase
// falls on or after since.
func (s *Store) SalesEventCounts(ctx context.Context, since time.Time) (repository.EventCounts, error) {
	if s == nil || s.db == nil {
		return repository.EventCounts{}, gorm.ErrInvalidDB
	}
	var row repository.EventCounts
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM sales WHERE sale_date >= ?) AS orders,
			(SELECT COUNT(*) FROM (
				SELECT customer_name FROM sales
				GROUP BY customer_name
				HAVING MIN(sale_date) >= ?
			) AS first_seen) AS new_customers,
			(SELECT COALESCE(SUM(quantity),0) FROM sales WHERE sale_date >= ?) AS products_sold
	`, since.UTC(), since.UTC(), since.UTC()).Scan(&row).Error
	if err != nil {
		return repository.EventCounts{}, err
	}
	return row, nil
}

func (s *Store) SalesColumns(ctx context.Context) ([]repository.ColumnInfo, error) {
	if s == nil || s.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var cols []repository.ColumnInfo
	err := s.db.WithContext(ctx).
		Table("information_schema.columns").
		Select("column_name, data_type, is_nullable").
		Where("table_name = ?", salesTable).
		Order("ordinal_position").
		Scan(&cols).Error
	if err != nil {
		return nil, err
	}
	return cols, nil
}
