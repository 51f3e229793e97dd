package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/service"
)

// EscrowHandler обслуживает маршруты escrow.
type EscrowHandler struct {
	escrows *service.EscrowService
}

// NewEscrowHandler создаёт новый хэндлер.
func NewEscrowHandler(escrows *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrows: escrows}
}

type escrowNotesRequest struct {
	Notes *string `json:"notes"`
}

// Fund обрабатывает POST /projects/:id/escrow.
func (h *EscrowHandler) Fund(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	projectID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req escrowNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса", "code": apperror.ErrCodeValidation})
		return
	}

	escrow, err := h.escrows.Fund(c.Request.Context(), principal, projectID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, escrow)
}

// GetByProject обрабатывает GET /projects/:id/escrow.
func (h *EscrowHandler) GetByProject(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	projectID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	escrow, err := h.escrows.GetByProject(c.Request.Context(), principal, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Get обрабатывает GET /escrows/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	escrow, err := h.escrows.Get(c.Request.Context(), principal, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// ListMine обрабатывает GET /escrows/my.
func (h *EscrowHandler) ListMine(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	escrows, err := h.escrows.ListMine(c.Request.Context(), principal, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrows)
}

// ListAll обрабатывает GET /escrows (админ).
func (h *EscrowHandler) ListAll(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	escrows, err := h.escrows.ListAll(c.Request.Context(), principal, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrows)
}

// StartWork обрабатывает POST /escrows/:id/start.
func (h *EscrowHandler) StartWork(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	escrow, err := h.escrows.StartWork(c.Request.Context(), principal, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Approve обрабатывает POST /escrows/:id/approve.
func (h *EscrowHandler) Approve(c *gin.Context) {
	h.transitionWithNotes(c, h.escrows.Approve)
}

// Release обрабатывает POST /escrows/:id/release (админ).
func (h *EscrowHandler) Release(c *gin.Context) {
	h.transitionWithNotes(c, h.escrows.Release)
}

// Cancel обрабатывает POST /escrows/:id/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
	h.transitionWithNotes(c, h.escrows.Cancel)
}

func (h *EscrowHandler) transitionWithNotes(c *gin.Context, op func(ctx context.Context, principal models.Principal, id uuid.UUID, notes *string) (*models.Escrow, error)) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req escrowNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса", "code": apperror.ErrCodeValidation})
		return
	}

	escrow, err := op(c.Request.Context(), principal, id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}
