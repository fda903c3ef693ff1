package handler

import (
	"context"

	billingapp "github.com/audithero/apostle-video-platform-sub004/internal/application/billing"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/overage"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/audithero/apostle-video-platform-sub004/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OverageService reports and toggles overage billing
type OverageService interface {
	ReportUsageToStripe(ctx context.Context, tenantID uuid.UUID) (*billingapp.ReportResult, error)
	EnableOverageOnSubscription(ctx context.Context, tenantID uuid.UUID) (*billingapp.SubscriptionChange, error)
	DisableOverageOnSubscription(ctx context.Context, tenantID uuid.UUID) (*billingapp.SubscriptionChange, error)
	GetOverageSummary(ctx context.Context, tenantID uuid.UUID) (*billingapp.OverageSummary, error)
}

// UpgradeAdvisor recommends a tier change from current overage
type UpgradeAdvisor interface {
	CheckAutoUpgradeRecommendation(ctx context.Context, tenantID uuid.UUID) (*overage.Recommendation, error)
}

// EntitlementChecker answers whether a tenant may consume one more unit
type EntitlementChecker interface {
	CheckCanPerformAction(ctx context.Context, tenantID uuid.UUID, m tier.Metric, currentUsage *int64) (*tier.ActionCheck, error)
}

// OverageHandler handles overage billing and entitlement endpoints
type OverageHandler struct {
	BaseHandler
	reporter     OverageService
	advisor      UpgradeAdvisor
	entitlements EntitlementChecker
}

// NewOverageHandler creates a new OverageHandler
func NewOverageHandler(reporter OverageService, advisor UpgradeAdvisor, entitlements EntitlementChecker) *OverageHandler {
	return &OverageHandler{
		reporter:     reporter,
		advisor:      advisor,
		entitlements: entitlements,
	}
}

// RegisterRoutes mounts the overage and entitlement routes
func (h *OverageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/overage")
	g.POST("/report", h.ReportUsage)
	g.POST("/enable", h.Enable)
	g.POST("/disable", h.Disable)
	g.GET("/recommendation", h.Recommendation)
	g.GET("/summary", h.Summary)

	rg.POST("/entitlements/check", h.CheckEntitlement)
}

// ReportUsage godoc
//
//	@ID				reportUsageToStripe
//	@Summary		Push current overage to the payment processor
//	@Description	Sets each billable metric's overage quantity for the running period. Skipped when overage is off or another run holds the tenant.
//	@Tags			overage
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=billingapp.ReportResult}
//	@Security		BearerAuth
//	@Router			/overage/report [post]
func (h *OverageHandler) ReportUsage(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	result, err := h.reporter.ReportUsageToStripe(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Enable godoc
//
//	@ID				enableOverageOnSubscription
//	@Summary		Turn on overage billing
//	@Description	Adds the missing metered items to the subscription. Repeating the call changes nothing.
//	@Tags			overage
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=billingapp.SubscriptionChange}
//	@Failure		422	{object}	dto.Response	"no subscription"
//	@Security		BearerAuth
//	@Router			/overage/enable [post]
func (h *OverageHandler) Enable(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	change, err := h.reporter.EnableOverageOnSubscription(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, change)
}

// Disable godoc
//
//	@ID				disableOverageOnSubscription
//	@Summary		Turn off overage billing
//	@Tags			overage
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=billingapp.SubscriptionChange}
//	@Security		BearerAuth
//	@Router			/overage/disable [post]
func (h *OverageHandler) Disable(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	change, err := h.reporter.DisableOverageOnSubscription(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, change)
}

// Recommendation godoc
//
//	@ID				checkAutoUpgradeRecommendation
//	@Summary		Upgrade advice from current overage
//	@Tags			overage
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=overage.Recommendation}
//	@Security		BearerAuth
//	@Router			/overage/recommendation [get]
func (h *OverageHandler) Recommendation(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	rec, err := h.advisor.CheckAutoUpgradeRecommendation(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rec)
}

// Summary godoc
//
//	@ID				getOverageSummary
//	@Summary		Dashboard view of the running period's overage
//	@Tags			overage
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=billingapp.OverageSummary}
//	@Security		BearerAuth
//	@Router			/overage/summary [get]
func (h *OverageHandler) Summary(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	summary, err := h.reporter.GetOverageSummary(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// CheckEntitlement godoc
//
//	@ID				checkCanPerformAction
//	@Summary		May the tenant use one more unit of a metric
//	@Tags			entitlements
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.EntitlementCheckRequest	true	"Metric"
//	@Success		200		{object}	dto.Response{data=tier.ActionCheck}
//	@Security		BearerAuth
//	@Router			/entitlements/check [post]
func (h *OverageHandler) CheckEntitlement(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.EntitlementCheckRequest
	if !h.bindJSON(c, &req) {
		return
	}

	check, err := h.entitlements.CheckCanPerformAction(c.Request.Context(), tenantID, tier.Metric(req.Metric), req.CurrentUsage)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, check)
}
