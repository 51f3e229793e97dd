package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/workbridge/marketplace-backend/internal/models"
)

// ErrNotificationNotFound возвращается, когда уведомление не найдено.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository отвечает за работу с журналом уведомлений.
// Журнал append-only: записи только добавляются, единственная мутация —
// монотонный флип is_read. Никаких read-modify-write всего списка.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository создаёт экземпляр репозитория.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create добавляет новое уведомление в журнал.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, for_admin, type, content, project_id, bid_id, escrow_id, action, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		notification.UserID,
		notification.ForAdmin,
		notification.Type,
		notification.Content,
		notification.ProjectID,
		notification.BidID,
		notification.EscrowID,
		notification.Action,
	).Scan(&notification.ID, &notification.CreatedAt); err != nil {
		return fmt.Errorf("notification repository: create %w", err)
	}

	return nil
}

// GetByID возвращает уведомление по идентификатору.
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, `SELECT * FROM notifications WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification repository: get by id %w", err)
	}

	return &notification, nil
}

// ListForUser возвращает уведомления пользователя по возрастанию времени.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT * FROM notifications WHERE user_id = $1`
	args := []interface{}{userID}

	if unreadOnly {
		query += ` AND is_read = FALSE`
	}

	query += fmt.Sprintf(" ORDER BY created_at LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("notification repository: list for user %w", err)
	}

	return notifications, nil
}

// ListForAdmin возвращает уведомления, адресованные роли админа.
func (r *NotificationRepository) ListForAdmin(ctx context.Context, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT * FROM notifications WHERE for_admin = TRUE`

	if unreadOnly {
		query += ` AND is_read = FALSE`
	}

	query += ` ORDER BY created_at LIMIT $1 OFFSET $2`

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, limit, offset); err != nil {
		return nil, fmt.Errorf("notification repository: list for admin %w", err)
	}

	return notifications, nil
}

// MarkAsRead отмечает уведомление как прочитанное. Повторный вызов
// безвреден: флаг уже стоит, строка находится, ошибки нет.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notification repository: mark as read %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("notification repository: mark as read rows affected %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// MarkAllAsReadForUser отмечает все уведомления пользователя как прочитанные.
func (r *NotificationRepository) MarkAllAsReadForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("notification repository: mark all as read %w", err)
	}

	return nil
}

// MarkAllAsReadForAdmin отмечает все адресованные админам уведомления.
func (r *NotificationRepository) MarkAllAsReadForAdmin(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE for_admin = TRUE AND is_read = FALSE`)
	if err != nil {
		return fmt.Errorf("notification repository: mark all as read for admin %w", err)
	}

	return nil
}

// CountUnreadForUser возвращает количество непрочитанных уведомлений пользователя.
func (r *NotificationRepository) CountUnreadForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("notification repository: count unread %w", err)
	}

	return count, nil
}

// CountUnreadForAdmin возвращает количество непрочитанных админских уведомлений.
func (r *NotificationRepository) CountUnreadForAdmin(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE for_admin = TRUE AND is_read = FALSE`); err != nil {
		return 0, fmt.Errorf("notification repository: count unread for admin %w", err)
	}

	return count, nil
}

// HasPaymentRequest проверяет наличие уведомления-запроса оплаты для
// пары (проект, получатель): им гейтится операция accept-payment.
func (r *NotificationRepository) HasPaymentRequest(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE project_id = $1 AND user_id = $2 AND type = $3
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, projectID, userID, models.NotificationPaymentRequested); err != nil {
		return false, fmt.Errorf("notification repository: has payment request %w", err)
	}

	return exists, nil
}
