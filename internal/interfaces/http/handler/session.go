package handler

import (
	countingapp "github.com/cyclecount/backend/internal/application/counting"
	"github.com/gin-gonic/gin"
)

// SessionHandler handles counting session API endpoints
type SessionHandler struct {
	BaseHandler
	sessionService        *countingapp.SessionService
	itemService           *countingapp.ItemService
	reconciliationService *countingapp.ReconciliationService
	reportService         *countingapp.ReportService
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(
	sessionService *countingapp.SessionService,
	itemService *countingapp.ItemService,
	reconciliationService *countingapp.ReconciliationService,
	reportService *countingapp.ReportService,
) *SessionHandler {
	return &SessionHandler{
		sessionService:        sessionService,
		itemService:           itemService,
		reconciliationService: reconciliationService,
		reportService:         reportService,
	}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/counting-sessions")
	{
		sessions.POST("", h.Create)
		sessions.GET("", h.List)
		sessions.GET("/code/:code", h.GetByCode)
		sessions.GET("/:id", h.Get)
		sessions.GET("/:id/progress", h.Progress)
		sessions.POST("/:id/start", h.Start)
		sessions.POST("/:id/complete", h.Complete)
		sessions.POST("/:id/cancel", h.Cancel)
		sessions.POST("/:id/settle", h.Settle)
		sessions.GET("/:id/items", h.ListItems)
		sessions.GET("/:id/report", h.Report)
	}
}

// Create creates a session for a plan outside the scheduler
func (h *SessionHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	var req countingapp.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	session, err := h.sessionService.CreateSession(c.Request.Context(), req, userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, session)
}

// List lists counting sessions
func (h *SessionHandler) List(c *gin.Context) {
	var filter countingapp.SessionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.sessionService.ListSessions(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get returns a single counting session
func (h *SessionHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, session)
}

// GetByCode returns a single counting session looked up by business code
func (h *SessionHandler) GetByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		h.BadRequest(c, "Session code is required")
		return
	}

	session, err := h.sessionService.GetSessionByCode(c.Request.Context(), code)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, session)
}

// Progress returns the counting progress of a session
func (h *SessionHandler) Progress(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	progress, err := h.sessionService.SessionProgress(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, progress)
}

// Start moves a scheduled session to IN_PROGRESS
func (h *SessionHandler) Start(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	session, err := h.sessionService.StartSession(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, session)
}

// Complete closes an in-progress session
func (h *SessionHandler) Complete(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	// Body optional; force defaults to false
	var req countingapp.CompleteSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	session, err := h.sessionService.CompleteSession(c.Request.Context(), id, req, userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, session)
}

// Cancel cancels a session and its open items
func (h *SessionHandler) Cancel(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	session, err := h.sessionService.CancelSession(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, session)
}

// Settle reconciles counted divergences into the stock ledger
func (h *SessionHandler) Settle(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	result, err := h.reconciliationService.Settle(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// ListItems returns the session's items, blinded when the plan requires it
func (h *SessionHandler) ListItems(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	items, err := h.itemService.ListSessionItems(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, items)
}

// Report returns the divergence report for a session
func (h *SessionHandler) Report(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	report, err := h.reportService.SessionReport(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, report)
}
