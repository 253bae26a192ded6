package handlers

import (
	"net/http"
	"time"

	"emporio-pos/internal/catalog"
	"emporio-pos/internal/reports"
	"emporio-pos/internal/sales"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	agg   *reports.Aggregator
	store *catalog.Store
	loc   *time.Location
}

func NewReportHandler(agg *reports.Aggregator, store *catalog.Store, loc *time.Location) *ReportHandler {
	return &ReportHandler{agg: agg, store: store, loc: loc}
}

// --- GET: /api/dashboard?startDate=&endDate= ---
// Every sale figure leaves cancelled sales out; recentSales shows them.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	r, err := sales.ParseDayRange(c.Query("startDate"), c.Query("endDate"), h.loc)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, ok := queryInt(c, "limit", reports.DefaultTopProducts)
	if !ok {
		return
	}

	dashboard, err := h.agg.Dashboard(c.Request.Context(), r, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// --- GET: /api/reports/valuation ---
// Stock on hand at cost price, grouped by category.
func (h *ReportHandler) StockValuation(c *gin.Context) {
	valuation, err := h.store.StockValuation(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, valuation)
}
