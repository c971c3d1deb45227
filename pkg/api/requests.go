package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// pathID parses the :id path parameter as a positive integer. On
// failure it writes the 400 response and returns ok=false.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id: must be a positive integer"})
		return 0, false
	}
	return id, true
}
