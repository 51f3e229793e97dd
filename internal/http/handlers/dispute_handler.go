package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/service"
)

// DisputeHandler обслуживает маршруты споров.
type DisputeHandler struct {
	disputes *service.DisputeService
}

// NewDisputeHandler создаёт новый хэндлер.
func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

type raiseDisputeRequest struct {
	Description string `json:"description" binding:"required"`
}

// Raise обрабатывает POST /projects/:id/disputes.
func (h *DisputeHandler) Raise(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	projectID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req raiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса", "code": apperror.ErrCodeValidation})
		return
	}

	dispute, err := h.disputes.Raise(c.Request.Context(), principal, projectID, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// Get обрабатывает GET /disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputes.Get(c.Request.Context(), principal, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ListMine обрабатывает GET /disputes/my.
func (h *DisputeHandler) ListMine(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	disputes, err := h.disputes.ListMine(c.Request.Context(), principal, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// ListAll обрабатывает GET /disputes (админ).
func (h *DisputeHandler) ListAll(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	disputes, err := h.disputes.ListAll(c.Request.Context(), principal, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// Close обрабатывает POST /disputes/:id/close (админ).
func (h *DisputeHandler) Close(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputes.Close(c.Request.Context(), principal, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// MarkRead обрабатывает PUT /disputes/:id/read (админ).
func (h *DisputeHandler) MarkRead(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.disputes.MarkRead(c.Request.Context(), principal, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "спор отмечен прочитанным"})
}

// CountPendingUnread обрабатывает GET /disputes/unread/count (админ).
func (h *DisputeHandler) CountPendingUnread(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	count, err := h.disputes.CountPendingUnread(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
