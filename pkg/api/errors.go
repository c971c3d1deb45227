package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mazebench/mazebench/pkg/store"
)

// writeStoreError maps store-layer errors to HTTP error responses.
func writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	if errors.Is(err, store.ErrDuplicateTrigger) {
		c.JSON(http.StatusConflict, gin.H{"error": "trigger with this message_id was already enqueued"})
		return
	}

	// Unexpected error
	slog.Error("Unexpected store error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
