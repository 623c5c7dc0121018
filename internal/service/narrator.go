package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"datagage/internal/cache"
	"datagage/internal/llm"
	"datagage/internal/logger"
	"datagage/internal/metrics"
)

const (
	InsightSourceAI       = "ai"
	InsightSourceFallback = "fallback"

	noDataInsight = "No data available for analysis"
)

// InsightFilter is the dashboard filter the data was selected with.
type InsightFilter struct {
	TimeRange string `json:"timeRange"`
	Product   string `json:"product"`
	Customer  string `json:"customer"`
}

// InsightRow is one month by product line of the data being narrated. Field
// names follow the detail endpoint so its rows can be posted back as is.
type InsightRow struct {
	Month           string          `json:"month"`
	Product         string          `json:"product,omitempty"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	UniqueCustomers int64           `json:"unique_customers"`
	AvgOrderValue   decimal.Decimal `json:"avg_order_value"`
	TotalOrders     int64           `json:"total_orders"`
	ItemsSold       int64           `json:"items_sold,omitempty"`
}

type InsightRequest struct {
	DetailRows []InsightRow    `json:"detailData"`
	Overview   json.RawMessage `json:"overviewData,omitempty" swaggertype:"object"`
	Filter     *InsightFilter  `json:"filterContext"`
}

type Insight struct {
	Text   string `json:"insights"`
	Source string `json:"source"`
}

// Chunk is one streamed message. Exactly one of Content, Error or Done is set.
type Chunk struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"-"`
}

// Narrator turns sales rows into an analyst-style narrative. Without a
// provider it still answers with a computed summary.
type Narrator struct {
	Provider llm.Provider
	Cache    cache.Store
	TTL      time.Duration
	Logger   *zap.Logger
}

func (n *Narrator) log() *zap.Logger { return logger.OrNop(n.Logger) }

func (n *Narrator) ttl() time.Duration {
	if n.TTL > 0 {
		return n.TTL
	}
	return DefaultCacheTTL
}

func (r InsightRequest) filter() InsightFilter {
	f := InsightFilter{}
	if r.Filter != nil {
		f = *r.Filter
	}
	if strings.TrimSpace(f.TimeRange) == "" {
		f.TimeRange = strconv.Itoa(DefaultPeriodMonths)
	}
	f.Product = normalizeFilter(f.Product)
	f.Customer = normalizeFilter(f.Customer)
	return f
}

func (n *Narrator) cacheKey(req InsightRequest) string {
	f := req.filter()
	return cache.Key("insight", f.TimeRange, f.Product, f.Customer, strconv.Itoa(len(req.DetailRows)))
}

// Generate returns the narrative for req. Provider failures degrade to the
// fallback summary and are not returned as errors.
func (n *Narrator) Generate(ctx context.Context, req InsightRequest) (*Insight, error) {
	if len(req.DetailRows) == 0 {
		return &Insight{Text: noDataInsight, Source: InsightSourceFallback}, nil
	}
	key := n.cacheKey(req)
	if n.Cache != nil {
		b, ok, err := n.Cache.Get(ctx, key)
		if err != nil {
			n.log().Warn("insight cache get", zap.Error(err))
		}
		metrics.CacheLookup("insight", ok)
		if ok {
			var out Insight
			if err := json.Unmarshal(b, &out); err == nil {
				return &out, nil
			}
		}
	}

	out := &Insight{Source: InsightSourceAI}
	if n.Provider == nil {
		out = &Insight{Text: FallbackInsight(req), Source: InsightSourceFallback}
	} else {
		prompt, err := BuildPrompt(req)
		if err != nil {
			return nil, err
		}
		text, err := n.Provider.Complete(ctx, prompt)
		if err != nil || strings.TrimSpace(text) == "" {
			n.log().Warn("insight provider failed, using fallback",
				zap.String("provider", n.Provider.Name()), zap.Error(err))
			out = &Insight{Text: FallbackInsight(req), Source: InsightSourceFallback}
		} else {
			out.Text = text
		}
	}
	metrics.Insight("buffered", out.Source)

	// only provider answers are cached
	if n.Cache != nil && out.Source == InsightSourceAI {
		if b, err := json.Marshal(out); err == nil {
			if err := n.Cache.Set(ctx, key, b, n.ttl()); err != nil {
				n.log().Warn("insight cache set", zap.Error(err))
			}
		}
	}
	return out, nil
}

// Stream emits the narrative chunk by chunk and always finishes with a Done
// chunk unless emit itself fails. The upstream stream is closed on every
// path.
func (n *Narrator) Stream(ctx context.Context, req InsightRequest, emit func(Chunk) error) error {
	if len(req.DetailRows) == 0 || n.Provider == nil {
		text := noDataInsight
		if len(req.DetailRows) > 0 {
			text = FallbackInsight(req)
		}
		metrics.Insight("stream", InsightSourceFallback)
		if err := emit(Chunk{Content: text}); err != nil {
			return err
		}
		return emit(Chunk{Done: true})
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return err
	}
	s, err := n.Provider.Stream(ctx, prompt)
	if err != nil {
		n.log().Warn("insight stream open", zap.String("provider", n.Provider.Name()), zap.Error(err))
		metrics.Insight("stream", "error")
		return n.fail(emit, err)
	}
	defer s.Close()

	for s.Next() {
		c := s.Chunk()
		if c == "" {
			continue
		}
		if err := emit(Chunk{Content: c}); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.log().Warn("insight stream", zap.String("provider", n.Provider.Name()), zap.Error(err))
		metrics.Insight("stream", "error")
		return n.fail(emit, err)
	}
	metrics.Insight("stream", InsightSourceAI)
	return emit(Chunk{Done: true})
}

func (n *Narrator) fail(emit func(Chunk) error, cause error) error {
	if err := emit(Chunk{Error: "Failed to generate insights: " + cause.Error()}); err != nil {
		return err
	}
	return emit(Chunk{Done: true})
}

// BuildPrompt renders the analyst prompts for req.
func BuildPrompt(req InsightRequest) (llm.Prompt, error) {
	f := req.filter()
	data, err := json.MarshalIndent(req.DetailRows, "", "  ")
	if err != nil {
		return llm.Prompt{}, err
	}
	desc := describeData(req.DetailRows, f)
	user := "Based on the following filtered data:\n" + desc +
		"\n\nQuery results:\n" + string(data) +
		"\n\nProvide your expert analysis with particular focus on:\n" +
		"1. The most significant patterns that could impact business decisions\n" +
		"2. Revenue optimization opportunities\n" +
		"3. Customer behavior insights\n" +
		"4. Specific, implementable recommendations that could improve performance within the next 3 months"
	return llm.Prompt{System: analystPrompt, User: user}, nil
}

func describeData(rows []InsightRow, f InsightFilter) string {
	first, last := monthSpan(rows)
	var b strings.Builder
	b.WriteString("Monthly sales analytics")
	if first != "" {
		fmt.Fprintf(&b, " from %s to %s", first, last)
	}
	b.WriteString(" with the following filters applied:\n")
	b.WriteString(describeFilter(f))
	b.WriteString("\n\nThe data includes:\n" +
		"- Total revenue per month\n" +
		"- Number of unique customers\n" +
		"- Average order value\n" +
		"- Total number of orders\n" +
		"- Products sold in each month")
	return b.String()
}

func describeFilter(f InsightFilter) string {
	var b strings.Builder
	if strings.EqualFold(f.TimeRange, "all") {
		b.WriteString("Time period: all time")
	} else {
		fmt.Fprintf(&b, "Time period: %s months", f.TimeRange)
	}
	if f.Product != "all" {
		fmt.Fprintf(&b, ", Product: %s", f.Product)
	}
	if f.Customer != "all" {
		fmt.Fprintf(&b, ", Customer: %s", f.Customer)
	}
	return b.String()
}

func monthSpan(rows []InsightRow) (string, string) {
	months := make([]string, 0, len(rows))
	for _, r := range rows {
		if m := strings.TrimSpace(r.Month); m != "" {
			months = append(months, m)
		}
	}
	if len(months) == 0 {
		return "", ""
	}
	sort.Strings(months)
	return monthLabel(months[0]), monthLabel(months[len(months)-1])
}

func monthLabel(raw string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("Jan 2006")
		}
	}
	return raw
}

// FallbackInsight summarizes rows without a model: totals, the three best
// products by revenue and the month span, as the same HTML fragment shape
// the model is asked for.
func FallbackInsight(req InsightRequest) string {
	rows := req.DetailRows
	if len(rows) == 0 {
		return noDataInsight
	}
	revenue := decimal.Zero
	var orders, items int64
	byProduct := map[string]decimal.Decimal{}
	for _, r := range rows {
		rev := r.TotalRevenue
		revenue = revenue.Add(rev)
		orders += r.TotalOrders
		items += r.ItemsSold
		if r.Product != "" {
			byProduct[r.Product] = byProduct[r.Product].Add(rev)
		}
	}
	type productRevenue struct {
		name    string
		revenue decimal.Decimal
	}
	ranked := make([]productRevenue, 0, len(byProduct))
	for name, rev := range byProduct {
		ranked = append(ranked, productRevenue{name, rev})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].revenue.Cmp(ranked[j].revenue); c != 0 {
			return c > 0
		}
		return ranked[i].name < ranked[j].name
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}

	aov := decimal.Zero
	if orders > 0 {
		aov = revenue.Div(decimal.NewFromInt(orders))
	}
	first, last := monthSpan(rows)

	var b strings.Builder
	b.WriteString("<h3>Executive Summary</h3>\n<p>")
	fmt.Fprintf(&b, "Total revenue of $%s across %d orders (average order value $%s)",
		revenue.StringFixed(2), orders, aov.StringFixed(2))
	if items > 0 {
		fmt.Fprintf(&b, ", %d items sold", items)
	}
	if first != "" {
		if first == last {
			fmt.Fprintf(&b, " in %s", first)
		} else {
			fmt.Fprintf(&b, " from %s to %s", first, last)
		}
	}
	b.WriteString(".</p>\n")
	if len(ranked) > 0 {
		b.WriteString("<h3>Top Products</h3>\n<ul>\n")
		for _, p := range ranked {
			fmt.Fprintf(&b, "<li>%s: $%s</li>\n", p.name, p.revenue.StringFixed(2))
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("<p>AI narrative is unavailable; this summary was computed directly from the data.</p>")
	return b.String()
}

const analystPrompt = `You are an elite business intelligence analyst with expertise in sales analytics, customer behavior, and revenue optimization. You transform raw sales data into strategic insights that drive business decisions.

ANALYSIS APPROACH:
- Identify statistically significant trends, not noise
- Compare periods to surface growth, decline and seasonality
- Connect product performance to customer behavior
- Quantify every finding with concrete numbers from the data

RESPONSE FORMAT:
- Respond in clean HTML fragments using <h3>, <p>, <ul>, <li> and <strong>
- Do not wrap the response in <html> or <body> tags
- Keep paragraphs short and scannable

YOUR ANALYSIS MUST INCLUDE:
1. Executive Summary: the two or three findings that matter most
2. Performance Deep-Dive: revenue, order volume, average order value and customer trends
3. Opportunity Identification: under-performing products or segments with upside
4. Actionable Recommendations: specific steps with expected impact

TAILORING:
- When a product filter is applied, focus on that product's trajectory
- When a customer filter is applied, focus on that customer's purchasing patterns
- When the period is short, emphasize recent momentum over long-term trends

CONSTRAINTS:
- Base every statement on the provided data; never invent figures
- Call out data gaps or anomalies explicitly
- Keep the full response under 600 words`
