package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"datagage/internal/client/metabase"
	"datagage/internal/logger"
	"datagage/internal/metrics"
)

const (
	salesDashboardName = "Sales Analytics Dashboard"
	salesDashboardDesc = "Overview of sales performance metrics"
	DefaultBIDatabase  = 2
)

// BIClient is the part of the Metabase API the dashboard service uses.
type BIClient interface {
	CreateDashboard(ctx context.Context, name, description string) (*metabase.Dashboard, error)
	ListTables(ctx context.Context, databaseID int) ([]metabase.Table, error)
	CreateCard(ctx context.Context, card metabase.Card) (int, error)
	AddCard(ctx context.Context, dashboardID int, card metabase.DashboardCard) error
}

type DashboardService struct {
	Client     BIClient
	Signer     *metabase.Signer
	DatabaseID int
	Logger     *zap.Logger
}

type DashboardCreated struct {
	DashboardID int    `json:"dashboardId"`
	EmbedURL    string `json:"embedUrl"`
}

func (s *DashboardService) log() *zap.Logger { return logger.OrNop(s.Logger) }

func (s *DashboardService) databaseID() int {
	if s.DatabaseID > 0 {
		return s.DatabaseID
	}
	return DefaultBIDatabase
}

// CreateSalesDashboard builds the sales dashboard with its two cards and
// returns an embed URL for it.
func (s *DashboardService) CreateSalesDashboard(ctx context.Context) (*DashboardCreated, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("create dashboard: metabase is not configured")
	}
	dash, err := s.Client.CreateDashboard(ctx, salesDashboardName, salesDashboardDesc)
	if err != nil {
		return nil, fmt.Errorf("create dashboard: %w", err)
	}
	metrics.WorkflowStage("dashboard", "create_dashboard", true)

	dbID := s.databaseID()
	tables, err := s.Client.ListTables(ctx, dbID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tableID := 0
	for _, t := range tables {
		if t.Name == "sales" {
			tableID = t.ID
			break
		}
	}
	if tableID == 0 {
		return nil, &NotFoundError{Kind: "Table", ID: "sales"}
	}

	col := 0
	for _, card := range salesCards(tableID, dbID) {
		id, err := s.Client.CreateCard(ctx, card)
		if err != nil {
			return nil, fmt.Errorf("create card %q: %w", card.Name, err)
		}
		if err := s.Client.AddCard(ctx, dash.ID, metabase.DashboardCard{
			CardID: id,
			Col:    col,
			SizeX:  card.SizeX,
			SizeY:  card.SizeY,
		}); err != nil {
			return nil, fmt.Errorf("add card %q: %w", card.Name, err)
		}
		col += card.SizeX
		s.log().Info("metabase card added", zap.Int("dashboard_id", dash.ID), zap.String("card", card.Name))
	}
	metrics.WorkflowStage("dashboard", "add_cards", true)

	out := &DashboardCreated{DashboardID: dash.ID}
	if s.Signer != nil {
		u, err := s.Signer.DashboardURL(dash.ID, metabase.EmbedParams{})
		if err != nil {
			s.log().Warn("dashboard created without embed url", zap.Int("dashboard_id", dash.ID), zap.Error(err))
		} else {
			out.EmbedURL = u
		}
	}
	return out, nil
}

func salesCards(tableID, databaseID int) []metabase.Card {
	total := []any{"field", "total", nil}
	return []metabase.Card{
		{
			Name:    "Monthly Sales Trend",
			Display: "line",
			VisualizationSettings: map[string]any{
				"graph.dimensions": []string{"sale_date"},
				"graph.metrics":    []string{"sum"},
			},
			DatasetQuery: metabase.DatasetQuery{
				Type:     "query",
				Database: databaseID,
				Query: map[string]any{
					"source-table": tableID,
					"aggregation":  []any{[]any{"sum", total}},
					"breakout":     []any{[]any{"field", "sale_date", map[string]string{"temporal-unit": "month"}}},
				},
			},
			SizeX: 8,
			SizeY: 6,
		},
		{
			Name:    "Product Performance",
			Display: "bar",
			VisualizationSettings: map[string]any{
				"graph.dimensions": []string{"product"},
				"graph.metrics":    []string{"sum", "count"},
			},
			DatasetQuery: metabase.DatasetQuery{
				Type:     "query",
				Database: databaseID,
				Query: map[string]any{
					"source-table": tableID,
					"aggregation":  []any{[]any{"sum", total}, []any{"count"}},
					"breakout":     []any{[]any{"field", "product", nil}},
				},
			},
			SizeX: 4,
			SizeY: 6,
		},
	}
}

// EmbedDashboard signs an embed URL for dashboard id with locked filters.
func (s *DashboardService) EmbedDashboard(id string, params metabase.EmbedParams) (string, error) {
	n, err := embedID("dashboard", id)
	if err != nil {
		return "", err
	}
	if s.Signer == nil {
		return "", metabase.ErrMissingSecret
	}
	return s.Signer.DashboardURL(n, params)
}

func (s *DashboardService) EmbedQuestion(id string, params metabase.EmbedParams) (string, error) {
	n, err := embedID("question", id)
	if err != nil {
		return "", err
	}
	if s.Signer == nil {
		return "", metabase.ErrMissingSecret
	}
	return s.Signer.QuestionURL(n, params)
}

func embedID(kind, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, invalid("id", "%s id must be a positive integer", kind)
	}
	return n, nil
}
