package handlers

import (
	"context"
	"errors"
	"net/http"

	"emporio-pos/internal/ai"

	"github.com/gin-gonic/gin"
)

type Assistant interface {
	Ask(ctx context.Context, message string) (string, error)
}

type AIHandler struct {
	assistant Assistant
}

func NewAIHandler(assistant Assistant) *AIHandler {
	return &AIHandler{assistant: assistant}
}

type AskRequest struct {
	Message string `json:"message" binding:"required"`
}

// --- POST: /api/ask ---
func (h *AIHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Message is required")
		return
	}

	reply, err := h.assistant.Ask(c.Request.Context(), req.Message)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, ai.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Assistant is not configured, set GEMINI_API_KEY", "code": "assistant_unavailable"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Assistant failed to answer", "code": "assistant_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
