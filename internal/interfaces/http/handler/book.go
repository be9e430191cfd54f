package handler

import (
	"github.com/gin-gonic/gin"
	appcatalog "github.com/library/backend/internal/application/catalog"
)

// BookHandler serves the catalog read API
type BookHandler struct {
	BaseHandler
	queries *appcatalog.BookQueryService
}

// NewBookHandler creates a new BookHandler
func NewBookHandler(queries *appcatalog.BookQueryService) *BookHandler {
	return &BookHandler{queries: queries}
}

// RegisterRoutes registers the book routes
func (h *BookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/books/:id", h.GetBook)
}

// GetBook returns one book with its availability counters
func (h *BookHandler) GetBook(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.BadRequest(c, "Invalid book ID")
		return
	}

	book, err := h.queries.GetBook(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, book)
}
