package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mazebench/mazebench/pkg/models"
)

const maxListLimit = 500

// listExperimentsHandler handles GET /api/v1/experiments with optional
// filters: status, maze_id, model_name, execution_name, limit, offset.
func (s *Server) listExperimentsHandler(c *gin.Context) {
	filters, msg := parseExperimentFilters(c)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	resp, err := s.store.ListExperiments(c.Request.Context(), filters)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// parseExperimentFilters validates the list query parameters, returning
// an error message or "" when valid.
func parseExperimentFilters(c *gin.Context) (models.ExperimentFilters, string) {
	var filters models.ExperimentFilters

	if status := c.Query("status"); status != "" {
		st := models.ExecutionStatus(strings.ToUpper(status))
		if !st.IsValid() {
			return filters, "invalid status: must be RUNNING, SUCCEEDED, FAILED, TIMED_OUT, or ABORTED"
		}
		filters.Status = st
	}
	if raw := c.Query("maze_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filters, "invalid maze_id: must be a positive integer"
		}
		filters.MazeID = id
	}
	filters.ModelName = c.Query("model_name")
	filters.ExecutionName = c.Query("execution_name")

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			return filters, "invalid limit: must be between 1 and 500"
		}
		filters.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filters, "invalid offset: must be a non-negative integer"
		}
		filters.Offset = n
	}

	return filters, ""
}

// getExperimentHandler handles GET /api/v1/experiments/:id.
func (s *Server) getExperimentHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	exp, err := s.store.GetExperiment(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, exp)
}

// listActionsHandler handles GET /api/v1/experiments/:id/actions.
// Returns the full audit trail ordered by step number.
func (s *Server) listActionsHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	// Distinguish "no actions yet" from "no such experiment".
	if _, err := s.store.GetExperiment(c.Request.Context(), id); err != nil {
		writeStoreError(c, err)
		return
	}

	actions, err := s.store.ListActions(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, &ActionListResponse{
		ExperimentID: id,
		Actions:      actions,
		Count:        len(actions),
	})
}

// getPositionHandler handles GET /api/v1/experiments/:id/position.
// Derives the current position from the action log.
func (s *Server) getPositionHandler(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	pos, err := s.store.CurrentPosition(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, &PositionResponse{ExperimentID: id, X: pos.X, Y: pos.Y})
}
