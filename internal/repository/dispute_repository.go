package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/workbridge/marketplace-backend/internal/models"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDuplicateDispute возвращается при гонке двух сторон за открытие
	// спора: частичный уникальный индекс допускает не более одного
	// pending спора на проект.
	ErrDuplicateDispute = errors.New("pending dispute already exists for this project")
	// ErrDisputeStateChanged возвращается, когда спор уже не в pending.
	ErrDisputeStateChanged = errors.New("dispute state changed concurrently")
)

// DisputeRepository отвечает за работу со спорами.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт новый экземпляр.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create сохраняет новый спор.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (project_id, raised_by_id, raised_by_role, against_id, against_role, description, status, is_read_by_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		d.ProjectID,
		d.RaisedByID,
		d.RaisedByRole,
		d.AgainstID,
		d.AgainstRole,
		d.Description,
		d.Status,
	).Scan(&d.ID, &d.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateDispute
		}
		return fmt.Errorf("dispute repository: create %w", err)
	}

	return nil
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	if err := r.db.GetContext(ctx, &d, `SELECT * FROM disputes WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &d, nil
}

// GetPendingByProject возвращает открытый спор по проекту, если он есть.
func (r *DisputeRepository) GetPendingByProject(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	query := `SELECT * FROM disputes WHERE project_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &d, query, projectID, models.DisputeStatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get pending by project %w", err)
	}
	return &d, nil
}

// ListByUser возвращает споры, где пользователь — одна из сторон.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE raised_by_id = $1 OR against_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListAll возвращает все споры для админской выборки.
func (r *DisputeRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list all %w", err)
	}
	return disputes, nil
}

// Close закрывает pending спор от имени админа. Guard по статусу — в UPDATE:
// повторное закрытие не пройдёт.
func (r *DisputeRepository) Close(ctx context.Context, id, adminID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		UPDATE disputes
		SET status = $3, closed_by = $2, closed_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING *
	`, id, adminID, models.DisputeStatusClosed, models.DisputeStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeStateChanged
		}
		return nil, fmt.Errorf("dispute repository: close %w", err)
	}
	return &d, nil
}

// MarkReadByAdmin флипает флаг прочтения админом.
func (r *DisputeRepository) MarkReadByAdmin(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE disputes SET is_read_by_admin = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("dispute repository: mark read by admin %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return ErrDisputeNotFound
	}

	return nil
}

// CountPendingUnread возвращает количество открытых непрочитанных споров
// для бейджа админа.
func (r *DisputeRepository) CountPendingUnread(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM disputes WHERE status = $1 AND is_read_by_admin = FALSE`
	if err := r.db.GetContext(ctx, &count, query, models.DisputeStatusPending); err != nil {
		return 0, fmt.Errorf("dispute repository: count pending unread %w", err)
	}
	return count, nil
}
