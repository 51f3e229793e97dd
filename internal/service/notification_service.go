package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-backend/internal/logger"
	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/repository"
)

// NotificationRepository описывает зависимости сервиса уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	ListForAdmin(ctx context.Context, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsReadForUser(ctx context.Context, userID uuid.UUID) error
	MarkAllAsReadForAdmin(ctx context.Context) error
	CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error)
	CountUnreadForAdmin(ctx context.Context) (int, error)
	HasPaymentRequest(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

// Broadcaster интерфейс для рассылки уведомлений по WebSocket.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data interface{}) error
	BroadcastToAdmins(event string, data interface{}) error
}

// NotificationService ведёт журнал уведомлений платформы.
// Запись в журнал — best-effort: сбой доставки уведомления логируется,
// но никогда не откатывает породившую его операцию.
type NotificationService struct {
	repo NotificationRepository
	hub  Broadcaster
}

// NewNotificationService создаёт сервис уведомлений.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// SetHub устанавливает WebSocket hub для живой доставки.
func (s *NotificationService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// NotificationInput описывает содержимое уведомления без адресата.
type NotificationInput struct {
	Type      string
	Content   string
	ProjectID *uuid.UUID
	BidID     *uuid.UUID
	EscrowID  *uuid.UUID
	Action    *models.NotificationAction
}

// NotifyUser добавляет уведомление для конкретного пользователя.
// Возвращаемую ошибку игнорируют вызовы после уже состоявшейся мутации:
// журнал уведомлений не должен её откатывать.
func (s *NotificationService) NotifyUser(ctx context.Context, userID uuid.UUID, in NotificationInput) error {
	notification := &models.Notification{
		UserID:    &userID,
		Type:      in.Type,
		Content:   in.Content,
		ProjectID: in.ProjectID,
		BidID:     in.BidID,
		EscrowID:  in.EscrowID,
		Action:    marshalAction(in.Action),
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"type":    in.Type,
			"error":   err.Error(),
		}).Error("notification service: не удалось записать уведомление")
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось записать уведомление")
	}

	if s.hub != nil {
		_ = s.hub.BroadcastToUser(userID, "notification.created", notification)
	}

	return nil
}

// NotifyAdmins добавляет уведомление, адресованное роли администратора.
func (s *NotificationService) NotifyAdmins(ctx context.Context, in NotificationInput) error {
	notification := &models.Notification{
		ForAdmin:  true,
		Type:      in.Type,
		Content:   in.Content,
		ProjectID: in.ProjectID,
		BidID:     in.BidID,
		EscrowID:  in.EscrowID,
		Action:    marshalAction(in.Action),
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"type":  in.Type,
			"error": err.Error(),
		}).Error("notification service: не удалось записать уведомление админам")
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось записать уведомление")
	}

	if s.hub != nil {
		_ = s.hub.BroadcastToAdmins("notification.created", notification)
	}

	return nil
}

// List возвращает уведомления адресата: личные для пользователя,
// адресованные роли — для админа. Порядок всегда по возрастанию времени.
func (s *NotificationService) List(ctx context.Context, principal models.Principal, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		notifications []models.Notification
		err           error
	)
	if principal.IsAdmin() {
		notifications, err = s.repo.ListForAdmin(ctx, limit, offset, unreadOnly)
	} else {
		notifications, err = s.repo.ListForUser(ctx, principal.ID, limit, offset, unreadOnly)
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить уведомления")
	}

	return notifications, nil
}

// MarkAsRead отмечает уведомление прочитанным. Операция идемпотентна.
func (s *NotificationService) MarkAsRead(ctx context.Context, principal models.Principal, id uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.ErrNotificationNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить уведомление")
	}

	switch {
	case notification.ForAdmin:
		if !principal.IsAdmin() {
			return apperror.ErrForbidden
		}
	case notification.UserID == nil || *notification.UserID != principal.ID:
		return apperror.ErrForbidden
	}

	if err := s.repo.MarkAsRead(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.ErrNotificationNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось отметить уведомление")
	}

	return nil
}

// MarkAllAsRead отмечает все уведомления адресата прочитанными.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, principal models.Principal) error {
	var err error
	if principal.IsAdmin() {
		err = s.repo.MarkAllAsReadForAdmin(ctx)
	} else {
		err = s.repo.MarkAllAsReadForUser(ctx, principal.ID)
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось отметить уведомления")
	}

	return nil
}

// CountUnread возвращает количество непрочитанных уведомлений адресата.
func (s *NotificationService) CountUnread(ctx context.Context, principal models.Principal) (int, error) {
	var (
		count int
		err   error
	)
	if principal.IsAdmin() {
		count, err = s.repo.CountUnreadForAdmin(ctx)
	} else {
		count, err = s.repo.CountUnreadForUser(ctx, principal.ID)
	}
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось посчитать уведомления")
	}

	return count, nil
}

// HasPaymentRequest сообщает, получал ли пользователь запрос оплаты по проекту.
func (s *NotificationService) HasPaymentRequest(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	return s.repo.HasPaymentRequest(ctx, projectID, userID)
}

func marshalAction(action *models.NotificationAction) json.RawMessage {
	if action == nil {
		return nil
	}

	raw, err := json.Marshal(action)
	if err != nil {
		return nil
	}
	return raw
}
