package handlers

import (
	"net/http"
	"strconv"

	"emporio-pos/internal/apperr"

	"github.com/gin-gonic/gin"
)

// respondError answers with the status and code carried by err. Unclassified
// errors become a generic 500 and the cause is left for the request log.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Something went wrong, please try again"
	}
	c.JSON(status, gin.H{"error": msg, "code": apperr.Code(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "invalid_request"})
}

// pathID reads a positive numeric path parameter, answering 400 when it is not one.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
