package api

import (
	"context"
	"errors"
	"net/http"

	"allocation/domain"
	"allocation/service"
	"allocation/util"

	"github.com/gin-gonic/gin"
)

// Handler serves the allocation endpoints.
type Handler struct {
	svc *service.AllocationService
}

// NewHandler creates a Handler over svc.
func NewHandler(svc *service.AllocationService) *Handler {
	return &Handler{svc: svc}
}

func toView(b *domain.Batch) BatchView {
	v := BatchView{
		Reference:         b.Reference,
		SKU:               b.SKU,
		PurchasedQuantity: b.PurchasedQuantity(),
		AvailableQuantity: b.AvailableQuantity(),
		Allocations:       b.Allocations(),
	}
	if b.ETA != nil {
		v.ETA = b.ETA.Format(domain.DateLayout)
	}
	return v
}

// AddBatch handles POST /api/v1/batches.
func (h *Handler) AddBatch(c *gin.Context) {
	var req AddBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid request: "+err.Error())
		return
	}
	eta, err := domain.ParseETA(req.ETA)
	if err != nil {
		h.handleError(c, err)
		return
	}
	b, err := h.svc.AddBatch(c.Request.Context(), req.Reference, req.SKU, req.Qty, eta)
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, http.StatusCreated, toView(b))
}

// GetBatch handles GET /api/v1/batches/:ref.
func (h *Handler) GetBatch(c *gin.Context) {
	b, err := h.svc.GetBatch(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, http.StatusOK, toView(b))
}

// ListBatches handles GET /api/v1/batches?sku=.
func (h *Handler) ListBatches(c *gin.Context) {
	batches, err := h.svc.ListBatches(c.Request.Context(), c.Query("sku"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		out = append(out, toView(b))
	}
	success(c, http.StatusOK, out)
}

// Allocate handles POST /api/v1/allocate. A missing order_id is generated.
func (h *Handler) Allocate(c *gin.Context) {
	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.OrderID == "" {
		req.OrderID = util.NewReference("order")
	}
	ref, err := h.svc.Allocate(c.Request.Context(), domain.OrderLine{OrderID: req.OrderID, SKU: req.SKU, Qty: req.Qty})
	if err != nil {
		h.handleError(c, err)
		return
	}
	success(c, http.StatusCreated, AllocateResponse{OrderID: req.OrderID, BatchRef: ref})
}

// Deallocate handles POST /api/v1/deallocate.
func (h *Handler) Deallocate(c *gin.Context) {
	var req DeallocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, CodeBadRequest, "invalid request: "+err.Error())
		return
	}
	line := domain.OrderLine{OrderID: req.OrderID, SKU: req.SKU, Qty: req.Qty}
	if err := h.svc.Deallocate(c.Request.Context(), req.BatchRef, line); err != nil {
		h.handleError(c, err)
		return
	}
	success(c, http.StatusOK, nil)
}

// handleError maps domain errors to HTTP status and business codes.
func (h *Handler) handleError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case domain.IsOutOfStockError(err):
		fail(c, http.StatusBadRequest, CodeOutOfStock, err.Error())
	case domain.IsInvalidBatchError(err):
		fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
	case domain.IsBatchNotFoundError(err):
		fail(c, http.StatusNotFound, CodeNotFound, err.Error())
	case domain.IsDuplicateBatchError(err):
		fail(c, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, CodeInternal, "request cancelled")
	default:
		fail(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
