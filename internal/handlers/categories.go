package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/awards/internal/services"
	"github.com/charlesng35/awards/pkg/response"
)

type CategoryHandler struct {
	catalog *services.CatalogService
	ledger  *services.VoteLedger
}

func NewCategoryHandler(catalog *services.CatalogService, ledger *services.VoteLedger) *CategoryHandler {
	return &CategoryHandler{catalog: catalog, ledger: ledger}
}

// GET /api/categories
//
// Administrators see unrevealed leadership winners; voters do not.
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.catalog.ListCategories(requestContext(c), currentUser(c).IsSuperAdmin())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, categories)
}

// GET /api/categories/:id/tally
func (h *CategoryHandler) Tally(c *gin.Context) {
	tally, err := h.ledger.Tally(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tally)
}
