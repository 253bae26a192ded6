// Package reports aggregates recorded sales for the dashboard. Every figure
// counts completed sales only.
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"emporio-pos/internal/models"
	"emporio-pos/internal/sales"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultTopProducts = 10
	RecentSalesLimit   = 5
)

// Catalog supplies the product counts shown beside the sales figures.
type Catalog interface {
	CountProducts(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context) (int64, error)
}

// Recent lists the latest sales of a range.
type Recent interface {
	List(ctx context.Context, f sales.ListFilter) ([]models.Sale, error)
}

type Aggregator struct {
	db      *gorm.DB
	catalog Catalog
	recent  Recent
}

func NewAggregator(db *gorm.DB, catalog Catalog, recent Recent) *Aggregator {
	return &Aggregator{db: db, catalog: catalog, recent: recent}
}

type Summary struct {
	TotalSales       int64           `json:"totalSales"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	TotalProducts    int64           `json:"totalProducts"`
	LowStockProducts int64           `json:"lowStockProducts"`
}

type PaymentBreakdown struct {
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Count         int64                `json:"count"`
	Total         decimal.Decimal      `json:"total" gorm:"column:revenue"`
}

type TopProduct struct {
	ProductID     uint            `json:"product_id"`
	ProductName   string          `json:"product_name"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

type DailySales struct {
	Date  string          `json:"date"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type Dashboard struct {
	Summary              Summary            `json:"summary"`
	SalesByPaymentMethod []PaymentBreakdown `json:"salesByPaymentMethod"`
	TopSellingProducts   []TopProduct       `json:"topSellingProducts"`
	DailySales           []DailySales       `json:"dailySales"`
	RecentSales          []models.Sale      `json:"recentSales"`
}

func (a *Aggregator) completed(ctx context.Context, r sales.Range) *gorm.DB {
	return a.db.WithContext(ctx).Model(&models.Sale{}).
		Where("sales.status = ? AND sales.created_at >= ? AND sales.created_at < ?",
			models.SaleCompleted, r.From.UTC(), r.To.UTC())
}

// SalesTotals counts completed sales and sums their revenue.
func (a *Aggregator) SalesTotals(ctx context.Context, r sales.Range) (int64, decimal.Decimal, error) {
	var row struct {
		Count   int64
		Revenue decimal.Decimal
	}
	err := a.completed(ctx, r).
		Select("COUNT(*) AS count, COALESCE(SUM(sales.total), 0) AS revenue").
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("sales totals: %w", err)
	}
	return row.Count, row.Revenue, nil
}

func (a *Aggregator) SalesByPaymentMethod(ctx context.Context, r sales.Range) ([]PaymentBreakdown, error) {
	rows := []PaymentBreakdown{}
	err := a.completed(ctx, r).
		Select("sales.payment_method AS payment_method, COUNT(*) AS count, COALESCE(SUM(sales.total), 0) AS revenue").
		Group("sales.payment_method").
		Order("revenue DESC").
		Order("payment_method ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sales by payment method: %w", err)
	}
	return rows, nil
}

// TopSellingProducts ranks products by units sold. Lines are grouped by the
// name recorded on the sale, so a renamed product may appear twice.
func (a *Aggregator) TopSellingProducts(ctx context.Context, r sales.Range, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = DefaultTopProducts
	}

	rows := []TopProduct{}
	err := a.db.WithContext(ctx).Table("sale_items").
		Select("sale_items.product_id AS product_id, sale_items.product_name AS product_name, "+
			"SUM(sale_items.quantity) AS total_quantity, SUM(sale_items.total_price) AS total_revenue").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sales.status = ? AND sales.created_at >= ? AND sales.created_at < ?",
			models.SaleCompleted, r.From.UTC(), r.To.UTC()).
		Group("sale_items.product_id, sale_items.product_name").
		Order("total_quantity DESC").
		Order("total_revenue DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top selling products: %w", err)
	}
	return rows, nil
}

// DailySalesSeries buckets completed sales by calendar day in the range's
// location. Days without sales are omitted.
func (a *Aggregator) DailySalesSeries(ctx context.Context, r sales.Range) ([]DailySales, error) {
	var rows []struct {
		CreatedAt time.Time
		Total     decimal.Decimal
	}
	if err := a.completed(ctx, r).Select("sales.created_at, sales.total").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}

	loc := r.Location()
	byDay := map[string]*DailySales{}
	for _, row := range rows {
		day := row.CreatedAt.In(loc).Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &DailySales{Date: day, Total: decimal.Zero}
			byDay[day] = d
		}
		d.Count++
		d.Total = d.Total.Add(row.Total)
	}

	out := make([]DailySales, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (a *Aggregator) Summary(ctx context.Context, r sales.Range) (Summary, error) {
	count, revenue, err := a.SalesTotals(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	products, err := a.catalog.CountProducts(ctx)
	if err != nil {
		return Summary{}, err
	}
	low, err := a.catalog.CountLowStock(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		TotalSales:       count,
		TotalRevenue:     revenue,
		TotalProducts:    products,
		LowStockProducts: low,
	}, nil
}

// Dashboard gathers everything the back-office dashboard shows for a range.
func (a *Aggregator) Dashboard(ctx context.Context, r sales.Range, topLimit int) (*Dashboard, error) {
	var (
		d   Dashboard
		err error
	)
	if d.Summary, err = a.Summary(ctx, r); err != nil {
		return nil, err
	}
	if d.SalesByPaymentMethod, err = a.SalesByPaymentMethod(ctx, r); err != nil {
		return nil, err
	}
	if d.TopSellingProducts, err = a.TopSellingProducts(ctx, r, topLimit); err != nil {
		return nil, err
	}
	if d.DailySales, err = a.DailySalesSeries(ctx, r); err != nil {
		return nil, err
	}
	if d.RecentSales, err = a.recent.List(ctx, sales.ListFilter{Range: &r, Limit: RecentSalesLimit}); err != nil {
		return nil, err
	}
	return &d, nil
}
