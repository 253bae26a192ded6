package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"emporio-pos/internal/apperr"
	"emporio-pos/internal/database"
	"emporio-pos/internal/models"

	"gorm.io/gorm"
)

var (
	ErrProductNotFound   = apperr.New(apperr.ErrNotFound, "product_not_found", "product not found")
	ErrInsufficientStock = apperr.New(apperr.ErrConflict, "insufficient_stock", "insufficient stock")
	ErrProductInUse      = apperr.New(apperr.ErrConflict, "product_in_use", "product is referenced by recorded sales")
	ErrStockLocked       = apperr.New(apperr.ErrConflict, "stock_locked", "stock of a sold product can only change through sales")
	ErrDuplicateBarcode  = apperr.New(apperr.ErrConflict, "duplicate_barcode", "barcode already registered")
	ErrInvalidProduct    = apperr.New(apperr.ErrValidation, "invalid_product", "invalid product")
)

// Store is the catalog of products. Stock changes go through AdjustStock only,
// and AdjustStock must be handed the caller's transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetProductByID(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	err := s.db.WithContext(ctx).Preload("Category").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, code string) (*models.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrProductNotFound
	}

	var p models.Product
	err := s.db.WithContext(ctx).Preload("Category").Where("barcode = ?", code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product by barcode: %w", err)
	}
	return &p, nil
}

// AdjustStock adds delta to the product's stock inside tx. The change is
// computed against the stored value by a single conditional UPDATE, so two
// concurrent sales can never both pass the sufficiency check on stale data.
func (s *Store) AdjustStock(tx *gorm.DB, id uint, delta int) error {
	if delta == 0 {
		return nil
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		if database.IsCheckViolation(res.Error) {
			return fmt.Errorf("%w: product %d", ErrInsufficientStock, id)
		}
		return fmt.Errorf("adjust stock of product %d: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&models.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("adjust stock of product %d: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, id)
	}
	return fmt.Errorf("%w: product %d", ErrInsufficientStock, id)
}

// Search matches name, barcode or category name substrings, ordered by name.
func (s *Store) Search(ctx context.Context, query string) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Preload("Category").Order("products.name ASC")

	if query = strings.TrimSpace(query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Joins("LEFT JOIN categories ON categories.id = products.category_id").
			Where("LOWER(products.name) LIKE ? OR LOWER(products.barcode) LIKE ? OR LOWER(categories.name) LIKE ?",
				like, like, like)
	}

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// LowStock lists products at or below their minimum, most urgent first.
func (s *Store) LowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("stock <= min_stock").
		Order("(min_stock - stock) DESC").
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("low stock products: %w", err)
	}
	return products, nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (s *Store) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("stock <= min_stock").Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count low stock products: %w", err)
	}
	return n, nil
}
