package sales

import (
	"fmt"
	"net/http"
	"strings"

	"emporio-pos/internal/apperr"
	"emporio-pos/internal/models"
	"emporio-pos/internal/payment"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptySale        = apperr.New(apperr.ErrValidation, "empty_sale", "sale must have at least one item")
	ErrInvalidTotal     = apperr.New(apperr.ErrValidation, "invalid_total", "total must be a positive amount")
	ErrInvalidItem      = apperr.New(apperr.ErrValidation, "invalid_item", "invalid sale item")
	ErrTotalMismatch    = apperr.New(apperr.ErrValidation, "total_mismatch", "total does not match the sum of the items")
	ErrChangeMismatch   = apperr.New(apperr.ErrValidation, "change_mismatch", "change_amount does not match cash_received minus total")
	ErrSaleNotFound     = apperr.New(apperr.ErrNotFound, "sale_not_found", "sale not found")
	ErrAlreadyCancelled = apperr.WithStatus(apperr.New(apperr.ErrConflict, "already_cancelled", "sale is already cancelled"), http.StatusBadRequest)
)

// ItemInput is one cart line as the till recorded it. Name and unit price are
// the snapshot taken when the product was scanned and are stored verbatim.
type ItemInput struct {
	ProductID   uint                `json:"product_id"`
	ProductName string              `json:"product_name"`
	Quantity    int                 `json:"quantity"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	TotalPrice  decimal.NullDecimal `json:"total_price"`
}

// CreateInput is a finished cart plus its settled payment.
type CreateInput struct {
	Items         []ItemInput
	Total         decimal.Decimal
	PaymentMethod string
	CashReceived  decimal.NullDecimal
	ChangeAmount  decimal.NullDecimal
	UserID        *uint

	// Set by the card terminal when the payment was approved.
	AuthorizationID string
	CardBrand       string
}

// Validate runs every check CreateSale performs before touching storage.
func (in CreateInput) Validate() error {
	_, err := in.build()
	return err
}

// build validates the input and returns the sale row to insert, without id
// or timestamp.
func (in CreateInput) build() (*models.Sale, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptySale
	}
	if !in.Total.IsPositive() {
		return nil, ErrInvalidTotal
	}
	if !payment.IsCents(in.Total) {
		return nil, fmt.Errorf("%w: total %s", payment.ErrAmountPrecision, in.Total)
	}

	method, err := payment.ParseMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	sum := decimal.Zero
	items := make([]models.SaleItem, 0, len(in.Items))
	for i, it := range in.Items {
		line, err := it.build(i)
		if err != nil {
			return nil, err
		}
		sum = sum.Add(line.TotalPrice)
		items = append(items, line)
	}
	if !sum.Equal(in.Total) {
		return nil, fmt.Errorf("%w: items sum to %s, total is %s", ErrTotalMismatch, sum.StringFixed(2), in.Total.StringFixed(2))
	}

	sale := &models.Sale{
		Total:         in.Total,
		PaymentMethod: method,
		Status:        models.SaleCompleted,
		UserID:        in.UserID,
		Items:         items,
	}

	switch method {
	case models.PaymentCash:
		tender, err := payment.TenderFor(method, in.CashReceived)
		if err != nil {
			return nil, err
		}
		cash := tender.(payment.Cash)
		if !payment.CanFinalize(in.Total, cash) {
			return nil, fmt.Errorf("%w: received %s, total %s", payment.ErrInsufficientCash, cash.Received.StringFixed(2), in.Total.StringFixed(2))
		}
		if in.ChangeAmount.Valid && !payment.IsCents(in.ChangeAmount.Decimal) {
			return nil, fmt.Errorf("%w: change_amount %s", payment.ErrAmountPrecision, in.ChangeAmount.Decimal)
		}
		change := payment.Change(in.Total, cash)
		if in.ChangeAmount.Valid && !in.ChangeAmount.Decimal.Equal(change) {
			return nil, fmt.Errorf("%w: expected %s", ErrChangeMismatch, change.StringFixed(2))
		}
		sale.CashReceived = decimal.NewNullDecimal(cash.Received)
		sale.ChangeAmount = decimal.NewNullDecimal(change)

	case models.PaymentCard:
		if id := strings.TrimSpace(in.AuthorizationID); id != "" {
			sale.AuthorizationID = &id
		}
		if brand := strings.TrimSpace(in.CardBrand); brand != "" {
			sale.CardBrand = &brand
		}
	}

	return sale, nil
}

func (it ItemInput) build(index int) (models.SaleItem, error) {
	if it.ProductID == 0 {
		return models.SaleItem{}, fmt.Errorf("%w: item %d has no product_id", ErrInvalidItem, index)
	}
	name := strings.TrimSpace(it.ProductName)
	if name == "" {
		return models.SaleItem{}, fmt.Errorf("%w: item %d has no product_name", ErrInvalidItem, index)
	}
	if it.Quantity < 1 {
		return models.SaleItem{}, fmt.Errorf("%w: item %d quantity must be at least 1", ErrInvalidItem, index)
	}
	if it.UnitPrice.IsNegative() {
		return models.SaleItem{}, fmt.Errorf("%w: item %d unit_price must be >= 0", ErrInvalidItem, index)
	}
	if !payment.IsCents(it.UnitPrice) {
		return models.SaleItem{}, fmt.Errorf("%w: item %d unit_price %s", payment.ErrAmountPrecision, index, it.UnitPrice)
	}

	total := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	if it.TotalPrice.Valid && !it.TotalPrice.Decimal.Equal(total) {
		return models.SaleItem{}, fmt.Errorf("%w: item %d total_price must equal quantity x unit_price", ErrInvalidItem, index)
	}

	return models.SaleItem{
		ProductID:   it.ProductID,
		ProductName: name,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		TotalPrice:  total,
	}, nil
}
