package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"emporio-pos/internal/database"
	"emporio-pos/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductInput is the editable part of a product. Nil fields are left alone
// on update.
type ProductInput struct {
	Barcode      *string          `json:"barcode"`
	Name         *string          `json:"name"`
	CategoryID   *uint            `json:"category_id"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
	SellingPrice *decimal.Decimal `json:"selling_price"`
	Stock        *int             `json:"stock"`
	MinStock     *int             `json:"min_stock"`
	Featured     *bool            `json:"featured"`
	ImageURL     *string          `json:"image_url"`
}

func (in ProductInput) validate(creating bool) error {
	if creating && (in.Name == nil || strings.TrimSpace(*in.Name) == "") {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: name cannot be blank", ErrInvalidProduct)
	}
	if in.CostPrice != nil && in.CostPrice.IsNegative() {
		return fmt.Errorf("%w: cost_price must be >= 0", ErrInvalidProduct)
	}
	if in.SellingPrice != nil && in.SellingPrice.IsNegative() {
		return fmt.Errorf("%w: selling_price must be >= 0", ErrInvalidProduct)
	}
	if in.Stock != nil && *in.Stock < 0 {
		return fmt.Errorf("%w: stock must be >= 0", ErrInvalidProduct)
	}
	if in.MinStock != nil && *in.MinStock < 0 {
		return fmt.Errorf("%w: min_stock must be >= 0", ErrInvalidProduct)
	}
	return nil
}

func (in ProductInput) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if in.Barcode != nil {
		if code := strings.TrimSpace(*in.Barcode); code != "" {
			cols["barcode"] = code
		} else {
			cols["barcode"] = nil
		}
	}
	if in.Name != nil {
		cols["name"] = strings.TrimSpace(*in.Name)
	}
	if in.CategoryID != nil {
		cols["category_id"] = *in.CategoryID
	}
	if in.CostPrice != nil {
		cols["cost_price"] = *in.CostPrice
	}
	if in.SellingPrice != nil {
		cols["selling_price"] = *in.SellingPrice
	}
	if in.Stock != nil {
		cols["stock"] = *in.Stock
	}
	if in.MinStock != nil {
		cols["min_stock"] = *in.MinStock
	}
	if in.Featured != nil {
		cols["featured"] = *in.Featured
	}
	if in.ImageURL != nil {
		cols["image_url"] = *in.ImageURL
	}
	return cols
}

func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	p := models.Product{Name: strings.TrimSpace(*in.Name)}
	if in.Barcode != nil {
		if code := strings.TrimSpace(*in.Barcode); code != "" {
			p.Barcode = &code
		}
	}
	p.CategoryID = in.CategoryID
	if in.CostPrice != nil {
		p.CostPrice = *in.CostPrice
	}
	if in.SellingPrice != nil {
		p.SellingPrice = *in.SellingPrice
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.MinStock != nil {
		p.MinStock = *in.MinStock
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
	}

	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateBarcode
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// UpdateProduct applies a partial update. Once any sale references the
// product its stock belongs to the sale engine and cannot be set here.
func (s *Store) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProduct(tx, id)
		if err != nil {
			return err
		}

		if in.Stock != nil && *in.Stock != p.Stock {
			sold, err := referenced(tx, id)
			if err != nil {
				return err
			}
			if sold {
				return ErrStockLocked
			}
		}

		cols := in.columns()
		if len(cols) == 0 {
			return nil
		}
		return tx.Model(p).Updates(cols).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateBarcode
		}
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrStockLocked) {
			return nil, err
		}
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}

	return s.GetProductByID(ctx, id)
}

// DeleteProduct refuses to remove products that appear on recorded sales.
func (s *Store) DeleteProduct(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockProduct(tx, id); err != nil {
			return err
		}
		sold, err := referenced(tx, id)
		if err != nil {
			return err
		}
		if sold {
			return ErrProductInUse
		}

		res := tx.Delete(&models.Product{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete product %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrProductNotFound
		}
		return nil
	})
}

// UpdatePrice changes the selling price only. Recorded sales keep the price
// they were charged.
func (s *Store) UpdatePrice(ctx context.Context, id uint, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: selling_price must be >= 0", ErrInvalidProduct)
	}
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("selling_price", price)
	if res.Error != nil {
		return fmt.Errorf("update price of product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports 0 affected rows when the price is unchanged
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("update price of product %d: %w", id, err)
		}
		if n == 0 {
			return ErrProductNotFound
		}
	}
	return nil
}

func referenced(tx *gorm.DB, productID uint) (bool, error) {
	var n int64
	if err := tx.Model(&models.SaleItem{}).Where("product_id = ?", productID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check sale references of product %d: %w", productID, err)
	}
	return n > 0, nil
}

// ValuationItem is one product line of the stock valuation report.
type ValuationItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// CategoryGroup is every valued product of one category.
type CategoryGroup struct {
	CategoryName string          `json:"category_name"`
	Items        []ValuationItem `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type Valuation struct {
	Categories []CategoryGroup `json:"categories"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// StockValuation prices the on-hand stock at cost, grouped by category.
func (s *Store) StockValuation(ctx context.Context) (*Valuation, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Preload("Category").Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("stock valuation: %w", err)
	}

	grouped := make(map[string]*CategoryGroup)
	out := &Valuation{Categories: []CategoryGroup{}, GrandTotal: decimal.Zero}

	for _, p := range products {
		catName := "Uncategorized"
		if p.Category != nil && p.Category.Name != "" {
			catName = p.Category.Name
		}

		group, ok := grouped[catName]
		if !ok {
			group = &CategoryGroup{CategoryName: catName, Items: []ValuationItem{}, Subtotal: decimal.Zero}
			grouped[catName] = group
		}

		itemTotal := p.CostPrice.Mul(decimal.NewFromInt(int64(p.Stock)))
		group.Items = append(group.Items, ValuationItem{
			Name:      p.Name,
			Quantity:  p.Stock,
			CostPrice: p.CostPrice,
			TotalCost: itemTotal,
		})
		group.Subtotal = group.Subtotal.Add(itemTotal)
		out.GrandTotal = out.GrandTotal.Add(itemTotal)
	}

	for _, group := range grouped {
		out.Categories = append(out.Categories, *group)
	}
	sort.Slice(out.Categories, func(i, j int) bool {
		return out.Categories[i].CategoryName < out.Categories[j].CategoryName
	})
	return out, nil
}

// lockProduct reads the product row FOR UPDATE, so a first sale cannot slip
// between the referenced check and the write that depends on it.
func lockProduct(tx *gorm.DB, id uint) (*models.Product, error) {
	var p models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}
