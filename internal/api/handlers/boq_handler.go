package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/AnnixInvestments/annix-sub017/internal/search"
	"github.com/AnnixInvestments/annix-sub017/internal/services"
	"github.com/AnnixInvestments/annix-sub017/internal/tracing"
	"github.com/AnnixInvestments/annix-sub017/internal/validation"
)

// BoqService is the customer-facing side of the distribution service
type BoqService interface {
	SubmitForQuotation(ctx context.Context, boqID uuid.UUID, req services.SubmissionRequest) (*services.SubmissionResult, error)
	HandleBoqUpdate(ctx context.Context, boqID uuid.UUID, req services.SubmissionRequest) (*services.SubmissionResult, error)
	SearchSections(ctx context.Context, text string, limit int) ([]search.SectionDocument, error)
}

// BoqHandler handles BOQ submission requests
type BoqHandler struct {
	service BoqService
	tracer  tracing.Tracer
}

// NewBoqHandler creates a new BOQ handler
func NewBoqHandler(service BoqService, tracer tracing.Tracer) *BoqHandler {
	return &BoqHandler{
		service: service,
		tracer:  tracer,
	}
}

// HandleSubmit distributes a BOQ to matching suppliers for quotation
func (h *BoqHandler) HandleSubmit(c *gin.Context) {
	h.distribute(c, "api-submit-boq", h.service.SubmitForQuotation)
}

// HandleUpdate regenerates a submitted BOQ and sends update notices
func (h *BoqHandler) HandleUpdate(c *gin.Context) {
	h.distribute(c, "api-update-boq", h.service.HandleBoqUpdate)
}

type distributeFunc func(ctx context.Context, boqID uuid.UUID, req services.SubmissionRequest) (*services.SubmissionResult, error)

func (h *BoqHandler) distribute(c *gin.Context, name string, fn distributeFunc) {
	txn := h.tracer.StartTransaction(name)
	defer h.tracer.EndTransaction(txn)

	boqID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		WriteError(c, NewValidationError("invalid BOQ id"))
		return
	}
	h.tracer.AddAttribute(txn, "boq_id", boqID.String())

	// The body is optional; an empty one means "consolidate from the RFQ"
	var req services.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("Invalid request body")
		h.tracer.RecordError(txn, err)
		WriteError(c, NewValidationError(err.Error()))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		WriteError(c, NewValidationError(err.Error()))
		return
	}

	result, err := fn(c.Request.Context(), boqID, req)
	if err != nil {
		log.Error().Err(err).Str("boq_id", boqID.String()).Msg("BOQ distribution failed")
		h.tracer.RecordError(txn, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleSearchSections runs a full-text search over indexed BOQ sections
func (h *BoqHandler) HandleSearchSections(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-search-sections")
	defer h.tracer.EndTransaction(txn)

	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		WriteError(c, NewValidationError("query parameter q is required"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(c, NewValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	docs, err := h.service.SearchSections(c.Request.Context(), text, limit)
	if err != nil {
		h.tracer.RecordError(txn, err)
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": docs, "count": len(docs)})
}

// RegisterRoutes registers the handler's routes
func (h *BoqHandler) RegisterRoutes(rg *gin.RouterGroup) {
	boqs := rg.Group("/boqs")
	boqs.GET("/sections/search", h.HandleSearchSections)
	boqs.POST("/:id/submit", h.HandleSubmit)
	boqs.PUT("/:id", h.HandleUpdate)
}
