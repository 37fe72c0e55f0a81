package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
	"github.com/AnnixInvestments/annix-sub017/internal/services"
	"github.com/AnnixInvestments/annix-sub017/internal/tracing"
)

const (
	// SupplierHeader carries the authenticated supplier profile id
	SupplierHeader = "X-Supplier-ID"

	supplierIDKey = "supplier_id"
	xlsxMimeType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SupplierPortalService is the supplier-facing side of the distribution service
type SupplierPortalService interface {
	GetSupplierBoqs(ctx context.Context, supplierID uuid.UUID, status string) ([]services.SupplierBoqListing, error)
	GetFilteredBoqForSupplier(ctx context.Context, boqID, supplierID uuid.UUID) (*services.SupplierBoqView, error)
	MarkViewed(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error)
	Decline(ctx context.Context, boqID, supplierID uuid.UUID, reason string) (*models.BoqSupplierAccess, error)
	SaveQuoteProgress(ctx context.Context, boqID, supplierID uuid.UUID, payload *models.QuotePayload) (*models.BoqSupplierAccess, error)
	SubmitQuote(ctx context.Context, boqID, supplierID uuid.UUID, payload *models.QuotePayload) (*models.BoqSupplierAccess, error)
	SetReminder(ctx context.Context, boqID, supplierID uuid.UUID, days *int) (*models.BoqSupplierAccess, error)
	ExportSupplierBoq(ctx context.Context, boqID, supplierID uuid.UUID) ([]byte, string, error)
}

// DeclineRequest is the body of a decline
type DeclineRequest struct {
	Reason string `json:"reason"`
}

// ReminderRequest is the body of a reminder update; null clears the reminder
type ReminderRequest struct {
	ReminderDays *int `json:"reminderDays"`
}

// SupplierHandler handles supplier portal requests
type SupplierHandler struct {
	service SupplierPortalService
	tracer  tracing.Tracer
}

// NewSupplierHandler creates a new supplier portal handler
func NewSupplierHandler(service SupplierPortalService, tracer tracing.Tracer) *SupplierHandler {
	return &SupplierHandler{
		service: service,
		tracer:  tracer,
	}
}

// RequireSupplier resolves the calling supplier from the X-Supplier-ID header
func RequireSupplier() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader(SupplierHeader))
		if err != nil || id == uuid.Nil {
			WriteError(c, ErrUnauthorized)
			return
		}
		c.Set(supplierIDKey, id)
		c.Next()
	}
}

func supplierID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(supplierIDKey)
	supplier, _ := id.(uuid.UUID)
	return supplier
}

// pathBoqID parses the :id path parameter, writing a 400 when it is malformed
func pathBoqID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		WriteError(c, NewValidationError("invalid BOQ id"))
		return uuid.Nil, false
	}
	return id, true
}

// HandleList lists the BOQs shared with the supplier, newest first
func (h *SupplierHandler) HandleList(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-supplier-list-boqs")
	defer h.tracer.EndTransaction(txn)

	status := c.Query("status")
	if status != "" && !validAccessStatus(status) {
		WriteError(c, NewValidationError(fmt.Sprintf("unknown status %q", status)))
		return
	}

	boqs, err := h.service.GetSupplierBoqs(c.Request.Context(), supplierID(c), status)
	if err != nil {
		h.tracer.RecordError(txn, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"boqs": boqs, "count": len(boqs)})
}

// HandleGet returns the supplier's filtered view of one BOQ
func (h *SupplierHandler) HandleGet(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-supplier-get-boq")
	defer h.tracer.EndTransaction(txn)

	boqID, ok := pathBoqID(c)
	if !ok {
		return
	}

	view, err := h.service.GetFilteredBoqForSupplier(c.Request.Context(), boqID, supplierID(c))
	if err != nil {
		h.tracer.RecordError(txn, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// HandleView records that the supplier opened the BOQ
func (h *SupplierHandler) HandleView(c *gin.Context) {
	h.transition(c, "api-supplier-view-boq", func(ctx context.Context, boqID, supplier uuid.UUID) (*models.BoqSupplierAccess, error) {
		return h.service.MarkViewed(ctx, boqID, supplier)
	})
}

// HandleDecline records the supplier declining to quote
func (h *SupplierHandler) HandleDecline(c *gin.Context) {
	var req DeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, NewValidationError(err.Error()))
		return
	}
	h.transition(c, "api-supplier-decline-boq", func(ctx context.Context, boqID, supplier uuid.UUID) (*models.BoqSupplierAccess, error) {
		return h.service.Decline(ctx, boqID, supplier, req.Reason)
	})
}

// HandleSaveQuote stores a draft quote
func (h *SupplierHandler) HandleSaveQuote(c *gin.Context) {
	var payload models.QuotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		WriteError(c, NewValidationError(err.Error()))
		return
	}
	h.transition(c, "api-supplier-save-quote", func(ctx context.Context, boqID, supplier uuid.UUID) (*models.BoqSupplierAccess, error) {
		return h.service.SaveQuoteProgress(ctx, boqID, supplier, &payload)
	})
}

// HandleSubmitQuote submits the final quote
func (h *SupplierHandler) HandleSubmitQuote(c *gin.Context) {
	var payload models.QuotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		WriteError(c, NewValidationError(err.Error()))
		return
	}
	h.transition(c, "api-supplier-submit-quote", func(ctx context.Context, boqID, supplier uuid.UUID) (*models.BoqSupplierAccess, error) {
		return h.service.SubmitQuote(ctx, boqID, supplier, &payload)
	})
}

// HandleSetReminder sets or clears the supplier's reminder interval
func (h *SupplierHandler) HandleSetReminder(c *gin.Context) {
	var req ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, NewValidationError(err.Error()))
		return
	}
	h.transition(c, "api-supplier-set-reminder", func(ctx context.Context, boqID, supplier uuid.UUID) (*models.BoqSupplierAccess, error) {
		return h.service.SetReminder(ctx, boqID, supplier, req.ReminderDays)
	})
}

type transitionFunc func(ctx context.Context, boqID, supplierID uuid.UUID) (*models.BoqSupplierAccess, error)

func (h *SupplierHandler) transition(c *gin.Context, name string, fn transitionFunc) {
	txn := h.tracer.StartTransaction(name)
	defer h.tracer.EndTransaction(txn)

	boqID, ok := pathBoqID(c)
	if !ok {
		return
	}
	supplier := supplierID(c)
	h.tracer.AddAttribute(txn, "boq_id", boqID.String())
	h.tracer.AddAttribute(txn, "supplier_id", supplier.String())

	record, err := fn(c.Request.Context(), boqID, supplier)
	if err != nil {
		log.Warn().Err(err).
			Str("boq_id", boqID.String()).
			Str("supplier_id", supplier.String()).
			Str("operation", name).
			Msg("Supplier access update rejected")
		h.tracer.RecordError(txn, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// HandleExport streams the supplier's sections as an xlsx workbook
func (h *SupplierHandler) HandleExport(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-supplier-export-boq")
	defer h.tracer.EndTransaction(txn)

	boqID, ok := pathBoqID(c)
	if !ok {
		return
	}

	data, filename, err := h.service.ExportSupplierBoq(c.Request.Context(), boqID, supplierID(c))
	if err != nil {
		h.tracer.RecordError(txn, err)
		WriteError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxMimeType, data)
}

func validAccessStatus(status string) bool {
	switch status {
	case models.AccessStatusPending, models.AccessStatusViewed, models.AccessStatusDeclined,
		models.AccessStatusQuoted, models.AccessStatusExpired:
		return true
	}
	return false
}

// RegisterRoutes registers the handler's routes
func (h *SupplierHandler) RegisterRoutes(rg *gin.RouterGroup) {
	portal := rg.Group("/supplier/boqs", RequireSupplier())
	portal.GET("", h.HandleList)
	portal.GET("/:id", h.HandleGet)
	portal.POST("/:id/view", h.HandleView)
	portal.POST("/:id/decline", h.HandleDecline)
	portal.PUT("/:id/quote", h.HandleSaveQuote)
	portal.POST("/:id/quote", h.HandleSubmitQuote)
	portal.PUT("/:id/reminder", h.HandleSetReminder)
	portal.GET("/:id/export", h.HandleExport)
}
