package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/library/backend/internal/application/operations"
	"github.com/library/backend/internal/interfaces/http/dto"
)

// DeadLetterHandler is the operator surface over parked commands
type DeadLetterHandler struct {
	BaseHandler
	service *operations.DeadLetterService
}

// NewDeadLetterHandler creates a new DeadLetterHandler
func NewDeadLetterHandler(service *operations.DeadLetterService) *DeadLetterHandler {
	return &DeadLetterHandler{service: service}
}

// RegisterRoutes registers the dead-letter routes
func (h *DeadLetterHandler) RegisterRoutes(rg *gin.RouterGroup) {
	dead := rg.Group("/dead-letters")
	dead.GET("", h.List)
	dead.GET("/stats", h.Stats)
	dead.POST("/:id/replay", h.Replay)
}

// List returns a page of parked commands, newest failures first
func (h *DeadLetterHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	req.Defaults()

	page, err := h.service.List(c.Request.Context(), req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Entries, page.Total, page.Page, page.PageSize)
}

// Replay requeues one parked command through the pipeline
func (h *DeadLetterHandler) Replay(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID")
		return
	}

	entry, err := h.service.Replay(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Stats returns the number of parked commands per reason
func (h *DeadLetterHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
