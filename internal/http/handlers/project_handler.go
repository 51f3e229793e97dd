package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/service"
)

// ProjectHandler обслуживает маршруты проектов.
type ProjectHandler struct {
	projects *service.ProjectService
}

// NewProjectHandler создаёт новый хэндлер.
func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type projectRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description" binding:"required"`
	Budget         float64    `json:"budget" binding:"required"`
	RequiredSkills []string   `json:"required_skills"`
	DeadlineAt     *time.Time `json:"deadline_at"`
}

// Create обрабатывает POST /projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса", "code": apperror.ErrCodeValidation})
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), principal, service.CreateProjectInput{
		Title:          req.Title,
		Description:    req.Description,
		Budget:         req.Budget,
		RequiredSkills: req.RequiredSkills,
		DeadlineAt:     req.DeadlineAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// List обрабатывает GET /projects.
func (h *ProjectHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 20)
	offset := parseIntQuery(c, "offset", 0)

	projects, err := h.projects.ListOpenProjects(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, projects)
}

// ListMine обрабатывает GET /projects/my.
func (h *ProjectHandler) ListMine(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	projects, err := h.projects.ListMyProjects(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, projects)
}

// Get обрабатывает GET /projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	project, err := h.projects.GetProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// Update обрабатывает PUT /projects/:id.
func (h *ProjectHandler) Update(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса", "code": apperror.ErrCodeValidation})
		return
	}

	project, err := h.projects.UpdateProject(c.Request.Context(), principal, service.UpdateProjectInput{
		ProjectID:      id,
		Title:          req.Title,
		Description:    req.Description,
		Budget:         req.Budget,
		RequiredSkills: req.RequiredSkills,
		DeadlineAt:     req.DeadlineAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// Delete обрабатывает DELETE /projects/:id.
func (h *ProjectHandler) Delete(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.projects.DeleteProject(c.Request.Context(), principal, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "проект удалён"})
}

// Cancel обрабатывает POST /projects/:id/cancel.
func (h *ProjectHandler) Cancel(c *gin.Context) {
	h.transition(c, h.projects.CancelProject)
}

// Reopen обрабатывает POST /projects/:id/reopen.
func (h *ProjectHandler) Reopen(c *gin.Context) {
	h.transition(c, h.projects.ReopenProject)
}

// Complete обрабатывает POST /projects/:id/complete.
func (h *ProjectHandler) Complete(c *gin.Context) {
	h.transition(c, h.projects.CompleteProject)
}

// ReturnToWork обрабатывает POST /projects/:id/return-to-work.
func (h *ProjectHandler) ReturnToWork(c *gin.Context) {
	h.transition(c, h.projects.ReturnToWork)
}

// AcceptPayment обрабатывает POST /projects/:id/accept-payment.
func (h *ProjectHandler) AcceptPayment(c *gin.Context) {
	h.transition(c, h.projects.AcceptPayment)
}

// RequestPayment обрабатывает POST /projects/:id/request-payment.
func (h *ProjectHandler) RequestPayment(c *gin.Context) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.projects.RequestPayment(c.Request.Context(), principal, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "запрос оплаты отправлен исполнителю"})
}

// transition выполняет однотипные операции смены статуса проекта.
func (h *ProjectHandler) transition(c *gin.Context, op func(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Project, error)) {
	principal, err := currentPrincipal(c)
	if err != nil {
		respondUnauthorized(c)
		return
	}

	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	project, err := op(c.Request.Context(), principal, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}
