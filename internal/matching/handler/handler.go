package handler

import (
	"net/http"
	"strconv"

	"marketplace_backend/internal/matching/service"
	"marketplace_backend/internal/matching/transport"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler exposes matching operations to administrators.
type Handler struct {
	eligibility *service.Eligibility
	dispatcher  *service.Dispatcher
	val         *validator.Validator
}

func New(eligibility *service.Eligibility, dispatcher *service.Dispatcher, val *validator.Validator) *Handler {
	return &Handler{eligibility: eligibility, dispatcher: dispatcher, val: val}
}

// RegisterAdminRoutes registers routes on the admin group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/requests/:id/eligible-providers", h.EligibleProviders)
	rg.POST("/requests/:id/notify", h.Notify)
}

func (h *Handler) EligibleProviders(c *gin.Context) {
	requestID, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))

	result, err := h.eligibility.FindEligibleProviders(c.Request.Context(), requestID, service.FindOptions{ForceRefresh: refresh})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Notify(c *gin.Context) {
	requestID, ok := httpkit.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req transport.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.dispatcher.NotifyProviders(c.Request.Context(), requestID, transport.Mode(req.Mode), req.ProviderIDs)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
