package handlers

import (
	"net/http"
	"time"

	"emporio-pos/internal/checkout"
	"emporio-pos/internal/middleware"
	"emporio-pos/internal/models"
	"emporio-pos/internal/payment"
	"emporio-pos/internal/sales"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type SalesHandler struct {
	checkout *checkout.Service
	engine   *sales.Engine
	loc      *time.Location
}

func NewSalesHandler(co *checkout.Service, engine *sales.Engine, loc *time.Location) *SalesHandler {
	return &SalesHandler{checkout: co, engine: engine, loc: loc}
}

// SaleRequest is a finished cart as the till sends it.
type SaleRequest struct {
	Items         []sales.ItemInput   `json:"items"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod string              `json:"payment_method"`
	CashReceived  decimal.NullDecimal `json:"cash_received"`
	ChangeAmount  decimal.NullDecimal `json:"change_amount"`
}

// --- POST: /api/sales ---
func (h *SalesHandler) Create(c *gin.Context) {
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sale, err := h.checkout.Checkout(c.Request.Context(), checkout.Request{
		Items:         req.Items,
		Total:         req.Total,
		PaymentMethod: req.PaymentMethod,
		CashReceived:  req.CashReceived,
		ChangeAmount:  req.ChangeAmount,
		UserID:        middleware.UserID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sale)
}

// --- GET: /api/sales ---
// Filters: startDate+endDate (YYYY-MM-DD), paymentMethod, status, page, limit.
func (h *SalesHandler) List(c *gin.Context) {
	var f sales.ListFilter

	startDate, endDate := c.Query("startDate"), c.Query("endDate")
	if startDate != "" || endDate != "" {
		r, err := sales.ParseDayRange(startDate, endDate, h.loc)
		if err != nil {
			respondError(c, err)
			return
		}
		f.Range = &r
	}

	if raw := c.Query("paymentMethod"); raw != "" {
		method, err := payment.ParseMethod(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		f.PaymentMethod = method
	}

	switch status := models.SaleStatus(c.Query("status")); status {
	case "", models.SaleCompleted, models.SaleCancelled:
		f.Status = status
	default:
		badRequest(c, "status must be completed or cancelled")
		return
	}

	limit, ok := queryInt(c, "limit", sales.DefaultListLimit)
	if !ok {
		return
	}
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = sales.DefaultListLimit
	}
	if limit > sales.MaxListLimit {
		limit = sales.MaxListLimit
	}
	f.Limit = limit
	f.Offset = (page - 1) * f.Limit

	list, err := h.engine.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// --- GET: /api/sales/:id ---
func (h *SalesHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	sale, err := h.engine.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// --- PUT: /api/sales/:id/cancel ---
func (h *SalesHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	sale, err := h.engine.CancelSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
