package handler

import (
	"context"

	packapp "github.com/audithero/apostle-video-platform-sub004/internal/application/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/pack"
	"github.com/audithero/apostle-video-platform-sub004/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PackService is the minute pack inventory as seen by the HTTP layer
type PackService interface {
	PurchasePack(ctx context.Context, tenantID uuid.UUID, packType pack.Type, externalPaymentRef string) (*packapp.PurchaseResult, error)
	CreateCheckout(ctx context.Context, tenantID uuid.UUID, packType pack.Type) (*packapp.CheckoutSession, error)
	DebitMinutes(ctx context.Context, tenantID uuid.UUID, minutes int64) (*packapp.DebitResult, error)
	GetBalance(ctx context.Context, tenantID uuid.UUID) (int64, error)
	GetPacks(ctx context.Context, tenantID uuid.UUID) ([]packapp.PackView, error)
}

// PackHandler handles minute pack endpoints
type PackHandler struct {
	BaseHandler
	packs PackService
}

// NewPackHandler creates a new PackHandler
func NewPackHandler(packs PackService) *PackHandler {
	return &PackHandler{packs: packs}
}

// RegisterRoutes mounts the pack routes
func (h *PackHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/packs")
	g.GET("", h.GetPacks)
	g.POST("", h.PurchasePack)
	g.GET("/balance", h.GetBalance)
	g.POST("/checkout", h.CreateCheckout)
	g.POST("/debit", h.DebitMinutes)
}

// PurchasePack godoc
//
//	@ID				purchasePack
//	@Summary		Record a pack purchase
//	@Description	Creates a pack from the catalog. A payment reference that was already fulfilled returns the existing pack with 200.
//	@Tags			packs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.PurchasePackRequest	true	"Pack"
//	@Success		201		{object}	dto.Response{data=dto.PackResponse}
//	@Success		200		{object}	dto.Response{data=dto.PackResponse}
//	@Security		BearerAuth
//	@Router			/packs [post]
func (h *PackHandler) PurchasePack(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.PurchasePackRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.packs.PurchasePack(c.Request.Context(), tenantID, pack.Type(req.PackType), req.ExternalPaymentRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	p := result.Pack
	resp := dto.PackResponse{
		ID:           p.ID,
		PackType:     p.PackType.String(),
		MinutesTotal: p.MinutesTotal,
		MinutesUsed:  p.MinutesUsed,
		PurchasedAt:  p.PurchasedAt,
		ExpiresAt:    p.ExpiresAt,
		Duplicate:    result.Duplicate,
	}
	if result.Duplicate {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// CreateCheckout godoc
//
//	@ID				createPackCheckout
//	@Summary		Start a hosted checkout for a pack
//	@Tags			packs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.PackCheckoutRequest	true	"Pack"
//	@Success		201		{object}	dto.Response{data=packapp.CheckoutSession}
//	@Failure		422		{object}	dto.Response	"payment processor not configured"
//	@Security		BearerAuth
//	@Router			/packs/checkout [post]
func (h *PackHandler) CreateCheckout(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.PackCheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}

	session, err := h.packs.CreateCheckout(c.Request.Context(), tenantID, pack.Type(req.PackType))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, session)
}

// DebitMinutes godoc
//
//	@ID				debitMinutes
//	@Summary		Consume rendering minutes
//	@Description	Drains packs oldest first. debited below requested means the packs ran out; the rest is not charged.
//	@Tags			packs
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.DebitMinutesRequest	true	"Minutes"
//	@Success		200		{object}	dto.Response{data=packapp.DebitResult}
//	@Security		BearerAuth
//	@Router			/packs/debit [post]
func (h *PackHandler) DebitMinutes(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.DebitMinutesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.packs.DebitMinutes(c.Request.Context(), tenantID, req.Minutes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetBalance godoc
//
//	@ID				getPackBalance
//	@Summary		Minutes left across consumable packs
//	@Tags			packs
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=dto.PackBalanceResponse}
//	@Security		BearerAuth
//	@Router			/packs/balance [get]
func (h *PackHandler) GetBalance(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	minutes, err := h.packs.GetBalance(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.PackBalanceResponse{Minutes: minutes})
}

// GetPacks godoc
//
//	@ID				getPacks
//	@Summary		List packs with their current status
//	@Tags			packs
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=[]packapp.PackView}
//	@Security		BearerAuth
//	@Router			/packs [get]
func (h *PackHandler) GetPacks(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	views, err := h.packs.GetPacks(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if views == nil {
		views = []packapp.PackView{}
	}
	h.Success(c, views)
}
