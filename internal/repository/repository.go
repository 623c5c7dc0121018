package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"datagage/internal/models"
)

var (
	// ErrNotFound is returned by mutations that matched zero rows.
	ErrNotFound = errors.New("record not found")
	// ErrNoFieldsProvided is returned by UpdateSource for an empty update.
	ErrNoFieldsProvided = errors.New("no fields provided")
)

type SourceRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	CreateSource(ctx context.Context, item *models.Source) error
	GetSource(ctx context.Context, id string) (*models.Source, error)
	FindSourceByExternalID(ctx context.Context, externalID string) (*models.Source, error)
	FindSourceByConnectionID(ctx context.Context, connectionID string) (*models.Source, error)
	ListSources(ctx context.Context, params ListSourcesParams) ([]models.Source, error)
	ListSourcesWithConnection(ctx context.Context) ([]models.Source, error)
	UpdateSource(ctx context.Context, id string, update SourceUpdate) (*models.Source, error)
	DeleteSource(ctx context.Context, id string) error
	UpdateLastSync(ctx context.Context, id string, at time.Time) (*models.Source, error)
	AttachExternalConnectionID(ctx context.Context, id string, connectionID string) (*models.Source, error)
	CountSourcesByStatus(ctx context.Context) (map[string]int64, error)
}

type SalesRepository interface {
	SalesTotals(ctx context.Context, window SalesWindow) (SalesTotals, error)
	SalesDetail(ctx context.Context, filter SalesFilter) ([]SalesDetailRow, error)
	SalesTimeSeries(ctx context.Context, params TimeSeriesParams) ([]TimeSeriesPoint, error)
	SalesEventCounts(ctx context.Context, since time.Time) (EventCounts, error)
	SalesColumns(ctx context.Context) ([]ColumnInfo, error)
	Ping(ctx context.Context) error
}

type ListSourcesParams struct {
	Limit  int
	Offset int
	Status *string
	Type   *string
}

// SourceUpdate holds the columns an update may touch. Nil fields are left
// untouched.
type SourceUpdate struct {
	Name                    *string
	Status                  *string
	ConnectionConfiguration datatypes.JSON
	ExternalSourceID        *string
	ExternalConnectionID    *string
	LastSync                *time.Time
}

func (u SourceUpdate) Empty() bool {
	return u.Name == nil &&
		u.Status == nil &&
		u.ConnectionConfiguration == nil &&
		u.ExternalSourceID == nil &&
		u.ExternalConnectionID == nil &&
		u.LastSync == nil
}

// SalesFilter narrows the sales table. Empty or "all" product/customer
// values do not filter. Zero From/To bounds are open.
type SalesFilter struct {
	From     time.Time
	To       time.Time
	Product  string
	Customer string
}

type SalesWindow = SalesFilter

type SalesTotals struct {
	Revenue         decimal.Decimal `gorm:"column:revenue"`
	Orders          int64           `gorm:"column:orders"`
	UniqueCustomers int64           `gorm:"column:unique_customers"`
	ItemsSold       int64           `gorm:"column:items_sold"`
}

type SalesDetailRow struct {
	Month           time.Time       `gorm:"column:month" json:"month"`
	Product         string          `gorm:"column:product" json:"product"`
	TotalOrders     int64           `gorm:"column:total_orders" json:"total_orders"`
	ItemsSold       int64           `gorm:"column:items_sold" json:"items_sold"`
	TotalRevenue    decimal.Decimal `gorm:"column:total_revenue" json:"total_revenue"`
	UniqueCustomers int64           `gorm:"column:unique_customers" json:"unique_customers"`
	AvgOrderValue   decimal.Decimal `gorm:"column:avg_order_value" json:"avg_order_value"`
}

type TimeSeriesParams struct {
	Granularity string
	Metric      string
	From        time.Time
}

type TimeSeriesPoint struct {
	TimeBucket  time.Time       `gorm:"column:time_bucket" json:"time_bucket"`
	MetricValue decimal.Decimal `gorm:"column:metric_value" json:"metric_value"`
}

type EventCounts struct {
	Orders       int64 `gorm:"column:orders" json:"orders"`
	NewCustomers int64 `gorm:"column:new_customers" json:"new_customers"`
	ProductsSold int64 `gorm:"column:products_sold" json:"products_sold"`
}

type ColumnInfo struct {
	Name     string `gorm:"column:column_name" json:"column_name"`
	DataType string `gorm:"column:data_type" json:"data_type"`
	Nullable string `gorm:"column:is_nullable" json:"is_nullable"`
}
