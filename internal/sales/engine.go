package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emporio-pos/internal/apperr"
	"emporio-pos/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	NoLimit          = -1
)

// StockAdjuster changes product stock inside the caller's transaction.
type StockAdjuster interface {
	AdjustStock(tx *gorm.DB, productID uint, delta int) error
}

// Engine records sales. Each sale or cancellation is one database transaction
// covering the header, its lines and every stock movement.
type Engine struct {
	db     *gorm.DB
	stock  StockAdjuster
	logger *zap.Logger
	now    func() time.Time
	tracer trace.Tracer

	createdCount   metric.Int64Counter
	cancelledCount metric.Int64Counter
	rejectedCount  metric.Int64Counter
}

func NewEngine(db *gorm.DB, stock StockAdjuster, logger *zap.Logger) *Engine {
	meter := otel.Meter("emporio-pos/sales")
	e := &Engine{
		db:     db,
		stock:  stock,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer("emporio-pos/sales"),
	}

	var err error
	if e.createdCount, err = meter.Int64Counter("pos.sales.created", metric.WithDescription("Sales committed")); err != nil {
		logger.Warn("sales counter unavailable", zap.Error(err))
	}
	if e.cancelledCount, err = meter.Int64Counter("pos.sales.cancelled", metric.WithDescription("Sales cancelled")); err != nil {
		logger.Warn("sales counter unavailable", zap.Error(err))
	}
	if e.rejectedCount, err = meter.Int64Counter("pos.sales.rejected", metric.WithDescription("Sale attempts rejected")); err != nil {
		logger.Warn("sales counter unavailable", zap.Error(err))
	}
	return e
}

// CreateSale validates in and commits the sale, its lines and the stock
// decrements together. Any failure rolls all of it back and is returned as is.
func (e *Engine) CreateSale(ctx context.Context, in CreateInput) (*models.Sale, error) {
	ctx, span := e.tracer.Start(ctx, "sales.CreateSale")
	defer span.End()

	sale, err := in.build()
	if err != nil {
		e.reject(ctx, span, err)
		return nil, err
	}
	sale.CreatedAt = e.now().UTC().Truncate(time.Millisecond)
	items := sale.Items
	sale.Items = nil

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sale).Error; err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		for i := range items {
			items[i].SaleID = sale.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert sale items: %w", err)
		}
		for _, it := range items {
			if err := e.stock.AdjustStock(tx, it.ProductID, -it.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.reject(ctx, span, err)
		e.logger.Warn("sale rolled back", zap.String("total", in.Total.StringFixed(2)), zap.Error(err))
		return nil, err
	}
	sale.Items = items

	e.add(ctx, e.createdCount, attribute.String("payment_method", string(sale.PaymentMethod)))
	span.SetAttributes(attribute.Int64("sale.id", int64(sale.ID)), attribute.Int("sale.items", len(items)))
	e.logger.Info("sale completed",
		zap.Uint("sale_id", sale.ID),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("payment_method", string(sale.PaymentMethod)),
		zap.Int("items", len(items)))

	return sale, nil
}

// GetByID returns the sale with its lines in scan order.
func (e *Engine) GetByID(ctx context.Context, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := e.db.WithContext(ctx).Preload("Items", orderItems).First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale %d: %w", id, err)
	}
	return &sale, nil
}

// ListFilter narrows a sales listing. Zero values mean no restriction, except
// Limit which falls back to DefaultListLimit. A negative Limit (NoLimit)
// returns every match.
type ListFilter struct {
	Range         *Range
	PaymentMethod models.PaymentMethod
	Status        models.SaleStatus
	Limit         int
	Offset        int
}

// List returns sales newest first, each with its lines.
func (e *Engine) List(ctx context.Context, f ListFilter) ([]models.Sale, error) {
	q := e.db.WithContext(ctx).Model(&models.Sale{}).Preload("Items", orderItems)

	if f.Range != nil {
		q = q.Where("created_at >= ? AND created_at < ?", f.Range.From.UTC(), f.Range.To.UTC())
	}
	if f.PaymentMethod != "" {
		q = q.Where("payment_method = ?", f.PaymentMethod)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	if f.Limit >= 0 {
		limit := f.Limit
		if limit == 0 {
			limit = DefaultListLimit
		}
		if limit > MaxListLimit {
			limit = MaxListLimit
		}
		q = q.Limit(limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	sales := []models.Sale{}
	err := q.Order("created_at DESC").Order("id DESC").Find(&sales).Error
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// GetAll returns every sale, newest first.
func (e *Engine) GetAll(ctx context.Context) ([]models.Sale, error) {
	return e.List(ctx, ListFilter{Limit: NoLimit})
}

// GetByDateRange includes the whole end day.
func (e *Engine) GetByDateRange(ctx context.Context, start, end time.Time) ([]models.Sale, error) {
	r := DayRange(start, end)
	return e.List(ctx, ListFilter{Range: &r, Limit: NoLimit})
}

// CancelSale flips a completed sale to cancelled and puts back every unit it
// took, in one transaction. A sale is cancelled at most once.
func (e *Engine) CancelSale(ctx context.Context, id uint) (*models.Sale, error) {
	ctx, span := e.tracer.Start(ctx, "sales.CancelSale", trace.WithAttributes(attribute.Int64("sale.id", int64(id))))
	defer span.End()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Sale{}).
			Where("id = ? AND status = ?", id, models.SaleCompleted).
			Update("status", models.SaleCancelled)
		if res.Error != nil {
			return fmt.Errorf("cancel sale %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Sale{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return fmt.Errorf("cancel sale %d: %w", id, err)
			}
			if n == 0 {
				return ErrSaleNotFound
			}
			return ErrAlreadyCancelled
		}

		var items []models.SaleItem
		if err := tx.Where("sale_id = ?", id).Order("id ASC").Find(&items).Error; err != nil {
			return fmt.Errorf("load items of sale %d: %w", id, err)
		}
		for _, it := range items {
			if err := e.stock.AdjustStock(tx, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("restore stock for sale %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Code(err))
		return nil, err
	}

	e.add(ctx, e.cancelledCount)
	e.logger.Info("sale cancelled", zap.Uint("sale_id", id))

	return e.GetByID(ctx, id)
}

func (e *Engine) reject(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, apperr.Code(err))
	e.add(ctx, e.rejectedCount, attribute.String("reason", apperr.Code(err)))
}

func (e *Engine) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("sale_items.id ASC")
}
