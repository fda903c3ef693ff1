package handler

import (
	"context"

	creditapp "github.com/audithero/apostle-video-platform-sub004/internal/application/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/credit"
	"github.com/audithero/apostle-video-platform-sub004/internal/domain/tier"
	"github.com/audithero/apostle-video-platform-sub004/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreditService is the credit ledger as seen by the HTTP layer
type CreditService interface {
	GetBalance(ctx context.Context, tenantID uuid.UUID, creditType credit.Type) (int64, error)
	GetAllBalances(ctx context.Context, tenantID uuid.UUID) (map[credit.Type]int64, error)
	Debit(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, amount int64, description string) (*creditapp.DebitResult, error)
	Credit(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, amount int64, description, externalRef string) (int64, error)
	AllocateMonthly(ctx context.Context, tenantID uuid.UUID, t tier.Tier) (map[credit.Type]int64, error)
	PurchaseAddon(ctx context.Context, tenantID uuid.UUID, addon credit.AddonType, externalRef string) (map[credit.Type]int64, error)
	History(ctx context.Context, tenantID uuid.UUID, creditType credit.Type, limit int) ([]credit.Entry, error)
	Audit(ctx context.Context, tenantID uuid.UUID, creditType credit.Type) (*creditapp.AuditResult, error)
}

// CreditHandler handles AI credit endpoints
type CreditHandler struct {
	BaseHandler
	credits CreditService
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(credits CreditService) *CreditHandler {
	return &CreditHandler{credits: credits}
}

// RegisterRoutes mounts the credit routes
func (h *CreditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/credits")
	g.GET("/balances", h.GetAllBalances)
	g.POST("/allocate", h.AllocateMonthly)
	g.POST("/addons", h.PurchaseAddon)
	g.GET("/:type/balance", h.GetBalance)
	g.GET("/:type/history", h.History)
	g.POST("/:type/debit", h.Debit)
	g.POST("/:type/credit", h.Credit)
}

// creditType parses the :type path parameter, writing a 400 when unknown
func (h *CreditHandler) creditType(c *gin.Context) (credit.Type, bool) {
	ct, err := credit.ParseType(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return "", false
	}
	return ct, true
}

// GetBalance godoc
//
//	@ID				getCreditBalance
//	@Summary		Get credit balance
//	@Description	Current balance of one credit type for the caller's tenant. A tenant with no ledger has 0.
//	@Tags			credits
//	@Produce		json
//	@Param			type	path		string	true	"Credit type"	Enums(ai_course, ai_rewrite, ai_image, ai_quiz)
//	@Success		200		{object}	dto.Response{data=dto.BalanceResponse}
//	@Failure		400		{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/credits/{type}/balance [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	ct, ok := h.creditType(c)
	if !ok {
		return
	}

	balance, err := h.credits.GetBalance(c.Request.Context(), tenantID, ct)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.BalanceResponse{CreditType: ct, Balance: balance})
}

// GetAllBalances godoc
//
//	@ID				getAllCreditBalances
//	@Summary		Get all credit balances
//	@Tags			credits
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=dto.BalancesResponse}
//	@Security		BearerAuth
//	@Router			/credits/balances [get]
func (h *CreditHandler) GetAllBalances(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	balances, err := h.credits.GetAllBalances(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.BalancesResponse{TenantID: tenantID, Balances: balances})
}

// Debit godoc
//
//	@ID				debitCredit
//	@Summary		Spend credits
//	@Description	Spends credits if the balance covers the amount. An insufficient balance answers 200 with success=false.
//	@Tags			credits
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string					true	"Credit type"
//	@Param			request	body		dto.DebitCreditRequest	true	"Debit"
//	@Success		200		{object}	dto.Response{data=creditapp.DebitResult}
//	@Failure		400		{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/credits/{type}/debit [post]
func (h *CreditHandler) Debit(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	ct, ok := h.creditType(c)
	if !ok {
		return
	}
	var req dto.DebitCreditRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.credits.Debit(c.Request.Context(), tenantID, ct, req.Amount, req.Description)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Credit godoc
//
//	@ID				creditAmount
//	@Summary		Grant credits
//	@Description	Adds credits. A repeated external_payment_ref is applied once.
//	@Tags			credits
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string					true	"Credit type"
//	@Param			request	body		dto.CreditAmountRequest	true	"Grant"
//	@Success		200		{object}	dto.Response{data=dto.BalanceResponse}
//	@Security		BearerAuth
//	@Router			/credits/{type}/credit [post]
func (h *CreditHandler) Credit(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	ct, ok := h.creditType(c)
	if !ok {
		return
	}
	var req dto.CreditAmountRequest
	if !h.bindJSON(c, &req) {
		return
	}

	balance, err := h.credits.Credit(c.Request.Context(), tenantID, ct, req.Amount, req.Description, req.ExternalPaymentRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.BalanceResponse{CreditType: ct, Balance: balance})
}

// AllocateMonthly godoc
//
//	@ID				allocateMonthlyCredits
//	@Summary		Reset credits to the tier allocation
//	@Tags			credits
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.AllocateMonthlyRequest	true	"Tier"
//	@Success		200		{object}	dto.Response{data=dto.BalancesResponse}
//	@Security		BearerAuth
//	@Router			/credits/allocate [post]
func (h *CreditHandler) AllocateMonthly(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.AllocateMonthlyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	balances, err := h.credits.AllocateMonthly(c.Request.Context(), tenantID, tier.Tier(req.Tier))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.BalancesResponse{TenantID: tenantID, Balances: balances})
}

// PurchaseAddon godoc
//
//	@ID				purchaseAddon
//	@Summary		Apply a credit add-on
//	@Tags			credits
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.PurchaseAddonRequest	true	"Add-on"
//	@Success		200		{object}	dto.Response{data=dto.BalancesResponse}
//	@Security		BearerAuth
//	@Router			/credits/addons [post]
func (h *CreditHandler) PurchaseAddon(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.PurchaseAddonRequest
	if !h.bindJSON(c, &req) {
		return
	}

	balances, err := h.credits.PurchaseAddon(c.Request.Context(), tenantID, credit.AddonType(req.AddonType), req.ExternalPaymentRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.BalancesResponse{TenantID: tenantID, Balances: balances})
}

// History godoc
//
//	@ID				getCreditHistory
//	@Summary		Ledger history of one credit type
//	@Description	Newest entries first. audit=true adds a full replay check of the stored balance.
//	@Tags			credits
//	@Produce		json
//	@Param			type	path		string	true	"Credit type"
//	@Param			limit	query		int		false	"Max entries"	default(50)
//	@Param			audit	query		bool	false	"Replay the ledger"
//	@Success		200		{object}	dto.Response{data=dto.HistoryResponse}
//	@Security		BearerAuth
//	@Router			/credits/{type}/history [get]
func (h *CreditHandler) History(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	ct, ok := h.creditType(c)
	if !ok {
		return
	}
	var q dto.HistoryQuery
	if !h.bindQuery(c, &q) {
		return
	}

	ctx := c.Request.Context()
	entries, err := h.credits.History(ctx, tenantID, ct, q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := dto.HistoryResponse{CreditType: ct, Entries: dto.NewLedgerEntryResponses(entries)}
	if q.Audit {
		audit, err := h.credits.Audit(ctx, tenantID, ct)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		resp.Audit = audit
	}
	h.Success(c, resp)
}
