package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/internal/services"
	"github.com/AnnixInvestments/annix-sub017/internal/tracing"
)

// AccessRecomputer re-derives open access grants after a capability change
type AccessRecomputer interface {
	RecomputeSupplierAccess(ctx context.Context, supplierID uuid.UUID) (*services.RecomputeResult, error)
}

// AccessHandler serves internal access maintenance endpoints
type AccessHandler struct {
	service AccessRecomputer
	tracer  tracing.Tracer
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(service AccessRecomputer, tracer tracing.Tracer) *AccessHandler {
	return &AccessHandler{
		service: service,
		tracer:  tracer,
	}
}

// HandleRecompute recomputes a supplier's open access records
func (h *AccessHandler) HandleRecompute(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-recompute-access")
	defer h.tracer.EndTransaction(txn)

	supplier, err := uuid.Parse(c.Param("id"))
	if err != nil {
		WriteError(c, NewValidationError("invalid supplier id"))
		return
	}

	result, err := h.service.RecomputeSupplierAccess(c.Request.Context(), supplier)
	if err != nil {
		log.Error().Err(err).Str("supplier_id", supplier.String()).Msg("Access recompute failed")
		h.tracer.RecordError(txn, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RegisterRoutes registers the handler's routes
func (h *AccessHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/suppliers/:id/recompute-access", h.HandleRecompute)
}
