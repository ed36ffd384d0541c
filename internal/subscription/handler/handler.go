package handler

import (
	"net/http"

	"marketplace_backend/internal/subscription/service"
	"marketplace_backend/internal/subscription/transport"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgForbidden        = "forbidden"
)

// Handler handles HTTP requests for subscriptions, quotas and referrals.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new subscription handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterPublicRoutes registers routes that need no authentication.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/subscription/plans", h.ListPlans)
}

// RegisterRoutes registers provider-facing routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers/:id/charge", h.GetCharge)
	rg.GET("/providers/:id/quota", h.GetQuota)
	rg.PUT("/providers/:id/plan", h.ChangePlan)
	rg.POST("/providers/:id/referral", h.RedeemReferral)
}

// RegisterAdminRoutes registers billing operations reserved for admins.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/providers/:id/renewal", h.ApplyRenewal)
	rg.POST("/referrals/apply", h.ApplyReferral)
}

func (h *Handler) ListPlans(c *gin.Context) {
	httpkit.OK(c, gin.H{"plans": h.svc.ListPlans(c.Request.Context())})
}

func (h *Handler) GetCharge(c *gin.Context) {
	providerID, ok := h.authorizedProvider(c)
	if !ok {
		return
	}

	charge, err := h.svc.GetCharge(c.Request.Context(), providerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, charge)
}

func (h *Handler) GetQuota(c *gin.Context) {
	providerID, ok := h.authorizedProvider(c)
	if !ok {
		return
	}

	status, err := h.svc.QuotaStatus(c.Request.Context(), providerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, status)
}

func (h *Handler) ChangePlan(c *gin.Context) {
	providerID, ok := h.authorizedProvider(c)
	if !ok {
		return
	}

	var req transport.ChangePlanRequest
	if !h.bind(c, &req) {
		return
	}

	if httpkit.HandleError(c, h.svc.ChangePlan(c.Request.Context(), providerID, req.Plan)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RedeemReferral(c *gin.Context) {
	providerID, ok := h.authorizedProvider(c)
	if !ok {
		return
	}

	var req transport.RedeemReferralRequest
	if !h.bind(c, &req) {
		return
	}

	referrerID, err := h.svc.RedeemReferral(c.Request.Context(), providerID, req.Code)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ReferralResponse{ReferrerID: referrerID})
}

func (h *Handler) ApplyReferral(c *gin.Context) {
	var req transport.ApplyReferralRequest
	if !h.bind(c, &req) {
		return
	}

	referrerID, err := h.svc.ApplyReferralCode(c.Request.Context(), req.Code)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ReferralResponse{ReferrerID: referrerID})
}

func (h *Handler) ApplyRenewal(c *gin.Context) {
	providerID, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	charge, err := h.svc.ApplyMonthlyRenewal(c.Request.Context(), providerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RenewalResponse{ProviderID: providerID, Charge: charge})
}

func (h *Handler) authorizedProvider(c *gin.Context) (uuid.UUID, bool) {
	providerID, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return uuid.Nil, false
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	if !httpkit.CanActFor(identity, providerID) {
		httpkit.Error(c, http.StatusForbidden, msgForbidden, nil)
		return uuid.Nil, false
	}
	return providerID, true
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}
