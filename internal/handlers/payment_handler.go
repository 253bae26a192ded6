package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReaderStatus reports whether card payments can currently be taken.
type ReaderStatus interface {
	ReaderConnected() bool
}

type PaymentHandler struct {
	reader     ReaderStatus
	terminalID string
}

func NewPaymentHandler(reader ReaderStatus, terminalID string) *PaymentHandler {
	return &PaymentHandler{reader: reader, terminalID: terminalID}
}

// --- GET: /api/payments/reader ---
// The till greys out the card button when this says disconnected.
func (h *PaymentHandler) Reader(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected":   h.reader.ReaderConnected(),
		"terminal_id": h.terminalID,
	})
}
