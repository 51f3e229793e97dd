package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/service"
)

// BidHandler обслуживает маршруты ставок.
type BidHandler struct {
	bids *service.BidService
}

// NewBidHandler создаёт новый хэндлер.
func NewBidHandler(bids *service.BidService) *BidHandler {
	return &BidHandler{bids: bids}
}

type bidRequest struct {
	Amount   float64 `json:"amount" binding:"required"`
	Timeline string  `json:"timeline"`
	Proposal string  `json:"proposal" binding:"required"`
}

// Create обрабатывает POST /projects/:id/bids.
func (h *BidHandler) Create(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	projectID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req bidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса", "code": apperror.ErrCodeValidation})
		return
	}

	bid, err := h.bids.CreateBid(c.Request.Context(), principal, service.BidInput{
		ProjectID: projectID,
		Amount:    req.Amount,
		Timeline:  req.Timeline,
		Proposal:  req.Proposal,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bid)
}

// ListByProject обрабатывает GET /projects/:id/bids.
func (h *BidHandler) ListByProject(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	projectID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	bids, err := h.bids.ListProjectBids(c.Request.Context(), principal, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bids)
}

// ListMine обрабатывает GET /bids/my.
func (h *BidHandler) ListMine(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	bids, err := h.bids.ListMyBids(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bids)
}

// Update обрабатывает PUT /bids/:id.
func (h *BidHandler) Update(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	bidID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req bidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса", "code": apperror.ErrCodeValidation})
		return
	}

	bid, err := h.bids.UpdateBid(c.Request.Context(), principal, bidID, service.BidInput{
		Amount:   req.Amount,
		Timeline: req.Timeline,
		Proposal: req.Proposal,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bid)
}

// Accept обрабатывает POST /bids/:id/accept.
func (h *BidHandler) Accept(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	bidID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	bid, err := h.bids.AcceptBid(c.Request.Context(), principal, bidID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bid)
}

// Cancel обрабатывает DELETE /bids/:id.
func (h *BidHandler) Cancel(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	bidID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.bids.CancelBid(c.Request.Context(), principal, bidID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "ставка отозвана"})
}
