package handlers

import (
	"context"
	"net/http"
	"strconv"

	"emporio-pos/internal/cart"
	"emporio-pos/internal/checkout"
	"emporio-pos/internal/middleware"
	"emporio-pos/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ProductFinder resolves what the till scanned or picked into a catalog product.
type ProductFinder interface {
	GetProductByID(ctx context.Context, id uint) (*models.Product, error)
	GetProductByBarcode(ctx context.Context, code string) (*models.Product, error)
}

// CartHandler serves register carts kept on the server for tills that hold no
// local state.
type CartHandler struct {
	carts    *cart.Registry
	products ProductFinder
	checkout *checkout.Service
}

func NewCartHandler(carts *cart.Registry, products ProductFinder, co *checkout.Service) *CartHandler {
	return &CartHandler{carts: carts, products: products, checkout: co}
}

type cartView struct {
	ID        string          `json:"id"`
	Items     []cart.Line     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func viewOf(id string, c *cart.Cart) cartView {
	return cartView{ID: id, Items: c.Lines(), Total: c.Total(), ItemCount: c.ItemCount()}
}

type AddItemRequest struct {
	ProductID uint   `json:"product_id"`
	Barcode   string `json:"barcode"`
	Quantity  int    `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

type CartCheckoutRequest struct {
	PaymentMethod string              `json:"payment_method"`
	CashReceived  decimal.NullDecimal `json:"cash_received"`
	ChangeAmount  decimal.NullDecimal `json:"change_amount"`
}

// --- POST: /api/carts ---
func (h *CartHandler) Open(c *gin.Context) {
	id := h.carts.Open()
	var view cartView
	_ = h.carts.With(id, func(ct *cart.Cart) error {
		view = viewOf(id, ct)
		return nil
	})
	c.JSON(http.StatusCreated, view)
}

// --- GET: /api/carts/:id ---
func (h *CartHandler) Get(c *gin.Context) {
	h.mutate(c, func(*cart.Cart) error { return nil })
}

// --- POST: /api/carts/:id/items ---
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	var (
		product *models.Product
		err     error
	)
	switch {
	case req.Barcode != "":
		product, err = h.products.GetProductByBarcode(c.Request.Context(), req.Barcode)
	case req.ProductID != 0:
		product, err = h.products.GetProductByID(c.Request.Context(), req.ProductID)
	default:
		badRequest(c, "product_id or barcode is required")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	h.mutate(c, func(ct *cart.Cart) error {
		return ct.AddItem(*product, req.Quantity)
	})
}

// --- PUT: /api/carts/:id/items/:index ---
func (h *CartHandler) UpdateItem(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	h.mutate(c, func(ct *cart.Cart) error {
		return ct.UpdateQuantity(index, req.Quantity)
	})
}

// --- DELETE: /api/carts/:id/items/:index ---
func (h *CartHandler) RemoveItem(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	h.mutate(c, func(ct *cart.Cart) error {
		return ct.RemoveItem(index)
	})
}

// --- DELETE: /api/carts/:id/items ---
func (h *CartHandler) Clear(c *gin.Context) {
	h.mutate(c, func(ct *cart.Cart) error {
		ct.Clear()
		return nil
	})
}

// --- DELETE: /api/carts/:id ---
func (h *CartHandler) Close(c *gin.Context) {
	if err := h.carts.Close(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- POST: /api/carts/:id/checkout ---
func (h *CartHandler) Checkout(c *gin.Context) {
	var req CartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sale, err := h.checkout.CheckoutCart(c.Request.Context(), h.carts, c.Param("id"),
		req.PaymentMethod, req.CashReceived, req.ChangeAmount, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// mutate applies fn under the cart lock and answers with the resulting cart.
func (h *CartHandler) mutate(c *gin.Context, fn func(*cart.Cart) error) {
	id := c.Param("id")
	var view cartView
	err := h.carts.With(id, func(ct *cart.Cart) error {
		if err := fn(ct); err != nil {
			return err
		}
		view = viewOf(id, ct)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func lineIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		badRequest(c, "Invalid line index")
		return 0, false
	}
	return index, true
}
