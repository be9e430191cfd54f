package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	appcirculation "github.com/library/backend/internal/application/circulation"
)

// LoanHandler serves the circulation read API. Loan writes do not pass
// through HTTP; they arrive as commands over the broker.
type LoanHandler struct {
	BaseHandler
	queries *appcirculation.LoanQueryService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(queries *appcirculation.LoanQueryService) *LoanHandler {
	return &LoanHandler{queries: queries}
}

// RegisterRoutes registers the loan routes
func (h *LoanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	loans := rg.Group("/loans")
	loans.GET("/:id", h.GetLoan)
	loans.GET("/:id/history", h.GetHistory)
}

// GetLoan returns one loan with its derived overdue fields
func (h *LoanHandler) GetLoan(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid loan ID")
		return
	}

	loan, err := h.queries.GetLoan(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loan)
}

// GetHistory returns the ordered audit trail of one loan
func (h *LoanHandler) GetHistory(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid loan ID")
		return
	}

	entries, err := h.queries.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

func parseID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
