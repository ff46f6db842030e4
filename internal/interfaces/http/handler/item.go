package handler

import (
	countingapp "github.com/cyclecount/backend/internal/application/counting"
	"github.com/gin-gonic/gin"
)

// ItemHandler handles counting item API endpoints
type ItemHandler struct {
	BaseHandler
	itemService *countingapp.ItemService
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(itemService *countingapp.ItemService) *ItemHandler {
	return &ItemHandler{itemService: itemService}
}

// RegisterRoutes registers item routes
func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	items := rg.Group("/counting-items")
	{
		items.GET("", h.List)
		items.GET("/:id", h.Get)
		items.POST("/:id/count", h.RecordCount)
		items.POST("/:id/recount", h.RecordRecount)
		items.POST("/:id/cancel", h.Cancel)
	}
}

// List lists counting items across sessions
func (h *ItemHandler) List(c *gin.Context) {
	var filter countingapp.ItemListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.itemService.ListItems(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get returns a single counting item
func (h *ItemHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	item, err := h.itemService.GetItem(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, item)
}

// RecordCount submits the first physical count for an item
func (h *ItemHandler) RecordCount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	var req countingapp.RecordCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.itemService.RecordCount(c.Request.Context(), id, req, userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, item)
}

// RecordRecount submits the verification count for a divergent item
func (h *ItemHandler) RecordRecount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	var req countingapp.RecordRecountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.itemService.RecordRecount(c.Request.Context(), id, req, userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, item)
}

// Cancel drops an item from its session with a reason
func (h *ItemHandler) Cancel(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	var req countingapp.CancelItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	item, err := h.itemService.CancelItem(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, item)
}
