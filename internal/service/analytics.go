package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"datagage/internal/cache"
	"datagage/internal/logger"
	"datagage/internal/metrics"
	"datagage/internal/models"
	"datagage/internal/repository"
)

const (
	DefaultPeriodMonths = 12
	MaxPeriodMonths     = 60
	DefaultCacheTTL     = 15 * time.Minute

	eventCountsWindow = 30 * 24 * time.Hour
)

var (
	hundred           = decimal.NewFromInt(100)
	seriesGranularity = map[string]bool{"day": true, "week": true, "month": true}
	seriesMetric      = map[string]bool{"revenue": true, "orders": true, "items": true}
)

// Period is a trailing window in months. The zero value means all time.
type Period struct {
	Months int
}

func (p Period) All() bool { return p.Months == 0 }

func (p Period) String() string {
	if p.All() {
		return "all"
	}
	return strconv.Itoa(p.Months)
}

// ParsePeriod reads the months query value: "all", or 1 to 60. Only the
// leading integer counts, so "5abc" is five months. Blank, zero and
// non-numeric input fall back to twelve months.
func ParsePeriod(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "all") {
		return Period{}, nil
	}
	n, err := strconv.Atoi(leadingInt(raw))
	if err != nil || n == 0 {
		return Period{Months: DefaultPeriodMonths}, nil
	}
	if n < 1 || n > MaxPeriodMonths {
		return Period{}, &ValidationError{Field: "months", Message: "Time range must be between 1 and 60 months, or 'all'"}
	}
	return Period{Months: n}, nil
}

// leadingInt returns the optional sign and digits that start s.
func leadingInt(s string) string {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return ""
	}
	return s[:end]
}

// Trend is the percentage change from prev to cur. A zero baseline maps to
// 100 when there is growth and 0 otherwise. The result is not rounded.
func Trend(cur, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		if cur.GreaterThan(decimal.Zero) {
			return hundred
		}
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev).Mul(hundred)
}

func trendFor(p Period, cur, prev decimal.Decimal) *float64 {
	if p.All() {
		return nil
	}
	f := Trend(cur, prev).InexactFloat64()
	return &f
}

type Overview struct {
	Period          string   `json:"period"`
	Product         string   `json:"product"`
	Customer        string   `json:"customer"`
	TotalRevenue    float64  `json:"totalRevenue"`
	TotalOrders     int64    `json:"totalOrders"`
	UniqueCustomers int64    `json:"uniqueCustomers"`
	AvgOrderValue   float64  `json:"avgOrderValue"`
	ItemsSold       int64    `json:"itemsSold"`
	RevenueTrend    *float64 `json:"revenueTrend"`
	OrdersTrend     *float64 `json:"ordersTrend"`
	CustomersTrend  *float64 `json:"customersTrend"`
	AovTrend        *float64 `json:"aovTrend"`
	ItemsSoldTrend  *float64 `json:"itemsSoldTrend"`
}

type EventCountsView struct {
	Orders       int64 `json:"orders"`
	NewCustomers int64 `json:"new_customers"`
	ProductsSold int64 `json:"products_sold"`
	Returns      int64 `json:"returns"`
}

type TopSource struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SourceType string     `json:"sourceType"`
	Status     string     `json:"status"`
	LastSync   *time.Time `json:"lastSync"`
}

type Activity struct {
	ID         string    `json:"id"`
	SourceName string    `json:"sourceName"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

type Diagnostic struct {
	Success  bool                    `json:"success"`
	DBStatus bool                    `json:"dbStatus"`
	Schema   []repository.ColumnInfo `json:"schema"`
	Sources  map[string]int64        `json:"sources,omitempty"`
	Message  string                  `json:"message"`
}

// AnalyticsService answers the dashboard's sales questions. Overview and
// detail answers are cached as encoded JSON, so repeated calls within the
// TTL return identical bytes.
type AnalyticsService struct {
	Sales   repository.SalesRepository
	Sources repository.SourceRepository
	Cache   cache.Store
	TTL     time.Duration
	Logger  *zap.Logger

	now func() time.Time
}

func (s *AnalyticsService) log() *zap.Logger { return logger.OrNop(s.Logger) }

func (s *AnalyticsService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func (s *AnalyticsService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultCacheTTL
}

func normalizeFilter(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "all"
	}
	return v
}

// cached returns the stored bytes for key, or runs load, encodes its result
// and stores it.
func (s *AnalyticsService) cached(ctx context.Context, kind, key string, load func() (any, error)) (json.RawMessage, error) {
	if s.Cache != nil {
		b, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			s.log().Warn("analytics cache get", zap.String("key", key), zap.Error(err))
		}
		metrics.CacheLookup(kind, ok)
		if ok {
			return json.RawMessage(b), nil
		}
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, b, s.ttl()); err != nil {
			s.log().Warn("analytics cache set", zap.String("key", key), zap.Error(err))
		}
	}
	return json.RawMessage(b), nil
}

// GetOverview returns the Overview for the period as JSON.
func (s *AnalyticsService) GetOverview(ctx context.Context, p Period, product, customer string) (json.RawMessage, error) {
	product, customer = normalizeFilter(product), normalizeFilter(customer)
	key := cache.Key("analytics", "overview", p.String(), product, customer)
	return s.cached(ctx, "overview", key, func() (any, error) {
		return s.computeOverview(ctx, p, product, customer)
	})
}

func (s *AnalyticsService) computeOverview(ctx context.Context, p Period, product, customer string) (*Overview, error) {
	now := s.clock()
	cur := repository.SalesWindow{Product: product, Customer: customer}
	if !p.All() {
		cur.From = now.AddDate(0, -p.Months, 0)
		cur.To = now
	}
	curTotals, err := s.Sales.SalesTotals(ctx, cur)
	if err != nil {
		return nil, err
	}
	out := &Overview{
		Period:          p.String(),
		Product:         product,
		Customer:        customer,
		TotalRevenue:    curTotals.Revenue.Round(2).InexactFloat64(),
		TotalOrders:     curTotals.Orders,
		UniqueCustomers: curTotals.UniqueCustomers,
		AvgOrderValue:   avgOrderValue(curTotals).InexactFloat64(),
		ItemsSold:       curTotals.ItemsSold,
	}
	if p.All() {
		return out, nil
	}

	prev := repository.SalesWindow{
		From:     now.AddDate(0, -2*p.Months, 0),
		To:       cur.From,
		Product:  product,
		Customer: customer,
	}
	prevTotals, err := s.Sales.SalesTotals(ctx, prev)
	if err != nil {
		return nil, err
	}
	out.RevenueTrend = trendFor(p, curTotals.Revenue, prevTotals.Revenue)
	out.OrdersTrend = trendFor(p, decimal.NewFromInt(curTotals.Orders), decimal.NewFromInt(prevTotals.Orders))
	out.CustomersTrend = trendFor(p, decimal.NewFromInt(curTotals.UniqueCustomers), decimal.NewFromInt(prevTotals.UniqueCustomers))
	out.AovTrend = trendFor(p, avgOrderValue(curTotals), avgOrderValue(prevTotals))
	out.ItemsSoldTrend = trendFor(p, decimal.NewFromInt(curTotals.ItemsSold), decimal.NewFromInt(prevTotals.ItemsSold))
	return out, nil
}

func avgOrderValue(t repository.SalesTotals) decimal.Decimal {
	if t.Orders == 0 {
		return decimal.Zero
	}
	return t.Revenue.Div(decimal.NewFromInt(t.Orders)).Round(2)
}

// GetDetail returns month by product rows as JSON, newest month first.
func (s *AnalyticsService) GetDetail(ctx context.Context, p Period, product, customer string) (json.RawMessage, error) {
	product, customer = normalizeFilter(product), normalizeFilter(customer)
	key := cache.Key("analytics", "detail", p.String(), product, customer)
	return s.cached(ctx, "detail", key, func() (any, error) {
		rows, err := s.DetailRows(ctx, p, product, customer)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []repository.SalesDetailRow{}
		}
		return rows, nil
	})
}

// DetailRows queries the detail rows without caching.
func (s *AnalyticsService) DetailRows(ctx context.Context, p Period, product, customer string) ([]repository.SalesDetailRow, error) {
	f := repository.SalesFilter{Product: normalizeFilter(product), Customer: normalizeFilter(customer)}
	if !p.All() {
		f.From = s.clock().AddDate(0, -p.Months, 0)
	}
	return s.Sales.SalesDetail(ctx, f)
}

// TimeSeries buckets one whitelisted metric over the last months. Query
// failures degrade to an empty series.
func (s *AnalyticsService) TimeSeries(ctx context.Context, granularity, metric string, months int) ([]repository.TimeSeriesPoint, error) {
	granularity = strings.ToLower(strings.TrimSpace(granularity))
	if granularity == "" {
		granularity = "day"
	}
	metric = strings.ToLower(strings.TrimSpace(metric))
	if metric == "" {
		metric = "revenue"
	}
	if !seriesGranularity[granularity] {
		return nil, invalid("granularity", "granularity must be one of day, week, month")
	}
	if !seriesMetric[metric] {
		return nil, invalid("metric", "metric must be one of revenue, orders, items")
	}
	if months <= 0 {
		months = 6
	}
	if months > MaxPeriodMonths {
		return nil, invalid("months", "Time range must be between 1 and 60 months, or 'all'")
	}
	points, err := s.Sales.SalesTimeSeries(ctx, repository.TimeSeriesParams{
		Granularity: granularity,
		Metric:      metric,
		From:        s.clock().AddDate(0, -months, 0),
	})
	if err != nil {
		s.log().Warn("analytics time series", zap.Error(err))
		return []repository.TimeSeriesPoint{}, nil
	}
	if points == nil {
		points = []repository.TimeSeriesPoint{}
	}
	return points, nil
}

// EventCounts summarizes the last thirty days. Returns are not tracked in
// the sales table and are always zero.
func (s *AnalyticsService) EventCounts(ctx context.Context) (*EventCountsView, error) {
	c, err := s.Sales.SalesEventCounts(ctx, s.clock().Add(-eventCountsWindow))
	if err != nil {
		return nil, err
	}
	return &EventCountsView{Orders: c.Orders, NewCustomers: c.NewCustomers, ProductsSold: c.ProductsSold}, nil
}

// TopSources lists the most recently synced local sources.
func (s *AnalyticsService) TopSources(ctx context.Context, limit int) ([]TopSource, error) {
	items, err := s.Sources.ListSourcesWithConnection(ctx)
	if err != nil {
		return nil, err
	}
	sortByLastSync(items)
	if limit <= 0 {
		limit = 5
	}
	out := make([]TopSource, 0, limit)
	for _, it := range items {
		if len(out) == limit {
			break
		}
		out = append(out, TopSource{ID: it.SourceID, Name: it.Name, SourceType: it.SourceType, Status: it.Status, LastSync: it.LastSync})
	}
	return out, nil
}

// RecentActivity reports the latest source changes as activity entries.
func (s *AnalyticsService) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	items, err := s.Sources.ListSources(ctx, repository.ListSourcesParams{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]Activity, 0, len(items))
	for _, it := range items {
		ts := it.UpdatedAt
		if it.LastSync != nil && it.LastSync.After(ts) {
			ts = *it.LastSync
		}
		out = append(out, Activity{ID: it.SourceID, SourceName: it.Name, Status: activityStatus(it), Timestamp: ts})
	}
	return out, nil
}

func activityStatus(src models.Source) string {
	switch src.Status {
	case models.SourceStatusFailed:
		return "Failed"
	case models.SourceStatusPending:
		return "Running"
	case models.SourceStatusInactive:
		return "Inactive"
	}
	if src.LastSync != nil {
		return "Completed"
	}
	return "Created"
}

func sortByLastSync(items []models.Source) {
	// insertion sort; the list is small
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && syncedAfter(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func syncedAfter(a, b models.Source) bool {
	switch {
	case a.LastSync == nil:
		return false
	case b.LastSync == nil:
		return true
	}
	return a.LastSync.After(*b.LastSync)
}

// Diagnostic pings the database, lists the sales table columns and counts
// local sources by status.
func (s *AnalyticsService) Diagnostic(ctx context.Context) (*Diagnostic, error) {
	if err := s.Sales.Ping(ctx); err != nil {
		return nil, err
	}
	cols, err := s.Sales.SalesColumns(ctx)
	if err != nil {
		return nil, err
	}
	out := &Diagnostic{Success: true, DBStatus: true, Schema: cols, Message: "Database connection successful"}
	if s.Sources != nil {
		counts, err := s.Sources.CountSourcesByStatus(ctx)
		if err != nil {
			s.log().Warn("diagnostic source counts", zap.Error(err))
		} else {
			out.Sources = counts
		}
	}
	return out, nil
}
