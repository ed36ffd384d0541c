package handler

import (
	"net/http"

	"marketplace_backend/internal/providers/domain"
	"marketplace_backend/internal/scoring/service"
	"marketplace_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgForbidden = "forbidden"

// Handler exposes provider scores.
type Handler struct {
	svc *service.Service
}

// New creates a new scoring handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers score routes on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers/:id/score", h.Preview)
	rg.POST("/providers/:id/score", h.Recalculate)
}

// Preview returns the current score without storing it.
func (h *Handler) Preview(c *gin.Context) {
	providerID, ok := h.authorizedProvider(c)
	if !ok {
		return
	}

	result, err := h.svc.Preview(c.Request.Context(), domain.RefByID(providerID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Recalculate recomputes and stores the score.
func (h *Handler) Recalculate(c *gin.Context) {
	providerID, ok := h.authorizedProvider(c)
	if !ok {
		return
	}

	result, err := h.svc.Calculate(c.Request.Context(), domain.RefByID(providerID))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
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
