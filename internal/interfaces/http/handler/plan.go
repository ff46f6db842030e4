package handler

import (
	"context"

	countingapp "github.com/cyclecount/backend/internal/application/counting"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PlanHandler handles counting plan API endpoints
type PlanHandler struct {
	BaseHandler
	planService   *countingapp.PlanService
	reportService *countingapp.ReportService
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(planService *countingapp.PlanService, reportService *countingapp.ReportService) *PlanHandler {
	return &PlanHandler{
		planService:   planService,
		reportService: reportService,
	}
}

// RegisterRoutes registers plan routes
func (h *PlanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	plans := rg.Group("/counting-plans")
	{
		plans.POST("", h.Create)
		plans.GET("", h.List)
		plans.GET("/code/:code", h.GetByCode)
		plans.GET("/:id", h.Get)
		plans.PUT("/:id", h.Update)
		plans.DELETE("/:id", h.Delete)
		plans.POST("/:id/activate", h.Activate)
		plans.POST("/:id/pause", h.Pause)
		plans.POST("/:id/cancel", h.Cancel)
		plans.POST("/:id/complete", h.Complete)
		plans.GET("/:id/accuracy-report", h.AccuracyReport)
	}
}

// Create creates a new counting plan
func (h *PlanHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	var req countingapp.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	plan, err := h.planService.CreatePlan(c.Request.Context(), req, userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, plan)
}

// List lists counting plans
func (h *PlanHandler) List(c *gin.Context) {
	var filter countingapp.PlanListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.planService.ListPlans(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get returns a single counting plan
func (h *PlanHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid plan ID format")
		return
	}

	plan, err := h.planService.GetPlan(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, plan)
}

// GetByCode returns a single counting plan looked up by business code
func (h *PlanHandler) GetByCode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		h.BadRequest(c, "Plan code is required")
		return
	}

	plan, err := h.planService.GetPlanByCode(c.Request.Context(), code)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, plan)
}

// Update applies a partial update to a counting plan
func (h *PlanHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid plan ID format")
		return
	}

	var req countingapp.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	plan, err := h.planService.UpdatePlan(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, plan)
}

// Delete removes a counting plan without open sessions
func (h *PlanHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid plan ID format")
		return
	}

	if err := h.planService.DeletePlan(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

// Activate transitions a plan to ACTIVE
func (h *PlanHandler) Activate(c *gin.Context) {
	h.transition(c, h.planService.ActivatePlan)
}

// Pause transitions a plan to PAUSED
func (h *PlanHandler) Pause(c *gin.Context) {
	h.transition(c, h.planService.PausePlan)
}

// Cancel transitions a plan to CANCELLED
func (h *PlanHandler) Cancel(c *gin.Context) {
	h.transition(c, h.planService.CancelPlan)
}

// Complete transitions a plan to COMPLETED
func (h *PlanHandler) Complete(c *gin.Context) {
	h.transition(c, h.planService.CompletePlan)
}

// AccuracyReport returns the accuracy trend across the plan's sessions
func (h *PlanHandler) AccuracyReport(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid plan ID format")
		return
	}

	report, err := h.reportService.PlanAccuracyReport(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, report)
}

func (h *PlanHandler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*countingapp.PlanResponse, error)) {
	id, err := parseIDParam(c)
	if err != nil {
		h.BadRequest(c, "Invalid plan ID format")
		return
	}

	plan, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, plan)
}
