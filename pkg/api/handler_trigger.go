package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mazebench/mazebench/pkg/models"
	"github.com/mazebench/mazebench/pkg/prompt"
)

// submitTriggerHandler handles POST /api/v1/triggers.
// Enqueues the trigger event and returns immediately; a queue worker
// picks it up, admits it, and runs the experiment.
func (s *Server) submitTriggerHandler(c *gin.Context) {
	// 1. Bind HTTP request
	var event models.TriggerEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. Reject malformed envelopes before they reach the queue. The
	// worker re-validates at admission; this keeps junk out of the
	// trigger table and gives producers an immediate 400.
	if msg := validateTriggerEvent(&event); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	// 3. The message id doubles as the dedup token; generate one when
	// the producer omits it.
	if event.MessageID == "" {
		event.MessageID = uuid.NewString()
	}

	// 4. Enqueue
	trigger, err := s.store.EnqueueTrigger(c.Request.Context(), event, event.MessageID, s.cfg.Queue.MaxDeliveryAttempts)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, &TriggerResponse{
		TriggerID:  trigger.ID,
		DedupToken: trigger.DedupToken,
		Status:     "queued",
		Message:    "Trigger queued for processing",
	})
}

// validateTriggerEvent checks the envelope fields, returning an error
// message or "" when valid.
func validateTriggerEvent(event *models.TriggerEvent) string {
	if !event.LLMProvider.IsValid() {
		return fmt.Sprintf("invalid llm_provider: must be %s or %s",
			models.ProviderManagedAgent, models.ProviderLocalChat)
	}
	if event.ModelName == "" {
		return "model_name is required"
	}
	if event.MazeID <= 0 {
		return "maze_id is required"
	}
	if _, err := prompt.Resolve(event.PromptVersion); err != nil {
		return fmt.Sprintf("invalid prompt_version: must be one of %v", prompt.Versions())
	}
	if event.LLMProvider == models.ProviderLocalChat && event.Config.IsEmpty() {
		return "config is required for local-chat triggers"
	}
	return ""
}
