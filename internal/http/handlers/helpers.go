package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/workbridge/marketplace-backend/internal/http/middleware"
	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
)

var errPrincipalNotFound = errors.New("пользователь не найден в контексте")

// currentPrincipal извлекает аутентифицированного пользователя из контекста.
func currentPrincipal(c *gin.Context) (models.Principal, error) {
	raw, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return models.Principal{}, errPrincipalNotFound
	}

	principal, ok := raw.(models.Principal)
	if !ok {
		return models.Principal{}, errPrincipalNotFound
	}

	return principal, nil
}

// parseUUIDParam извлекает UUID из path-параметра.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор", "code": apperror.ErrCodeValidation})
		return uuid.Nil, false
	}
	return id, true
}

// parseIntQuery извлекает целочисленный query-параметр с дефолтом.
func parseIntQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

// respondError отдаёт ошибку клиенту: AppError — со своим статусом и кодом,
// прочие ошибки уходят в централизованный обработчик.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}

	_ = c.Error(err)
}

// respondUnauthorized отдаёт 401 при отсутствии пользователя в контексте.
func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация", "code": apperror.ErrCodeUnauthorized})
}
