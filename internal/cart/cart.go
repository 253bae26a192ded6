// Package cart accumulates scanned products into priced lines before a sale
// is committed. Nothing here touches persisted stock.
package cart

import (
	"fmt"

	"emporio-pos/internal/apperr"
	"emporio-pos/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = apperr.New(apperr.ErrValidation, "invalid_quantity", "quantity must be at least 1")
	ErrExceedsStock    = apperr.New(apperr.ErrValidation, "exceeds_stock", "quantity exceeds available stock")
	ErrLineOutOfRange  = apperr.New(apperr.ErrValidation, "line_out_of_range", "no cart line at that position")
	ErrNegativePrice   = apperr.New(apperr.ErrValidation, "negative_price", "product has a negative price")
)

// Line is one product in the cart with the price it had when first scanned.
type Line struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

func (l *Line) recompute() {
	l.TotalPrice = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered list of lines in scan order. It is not safe for
// concurrent use; Registry serialises access per cart.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// AddItem appends the product or, when already present, increases its
// quantity. The unit price is snapshotted on the first add and never
// refreshed. The combined quantity may not exceed the product's stock.
func (c *Cart) AddItem(p models.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if p.SellingPrice.IsNegative() {
		return ErrNegativePrice
	}

	for i := range c.lines {
		if c.lines[i].ProductID != p.ID {
			continue
		}
		if c.lines[i].Quantity+quantity > p.Stock {
			return fmt.Errorf("%w: %s has %d in stock", ErrExceedsStock, p.Name, p.Stock)
		}
		c.lines[i].Quantity += quantity
		c.lines[i].recompute()
		return nil
	}

	if quantity > p.Stock {
		return fmt.Errorf("%w: %s has %d in stock", ErrExceedsStock, p.Name, p.Stock)
	}
	line := Line{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.SellingPrice,
	}
	line.recompute()
	c.lines = append(c.lines, line)
	return nil
}

// UpdateQuantity sets the quantity of the line at index. Zero or less removes it.
func (c *Cart) UpdateQuantity(index, quantity int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineOutOfRange
	}
	if quantity <= 0 {
		return c.RemoveItem(index)
	}
	c.lines[index].Quantity = quantity
	c.lines[index].recompute()
	return nil
}

func (c *Cart) RemoveItem(index int) error {
	if index < 0 || index >= len(c.lines) {
		return ErrLineOutOfRange
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// Total sums the line totals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.TotalPrice)
	}
	return total
}

// ItemCount sums quantities, not lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the lines in scan order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}
