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
	ErrBidNotFound = errors.New("bid not found")
	// ErrDuplicateBid возвращается при повторной ставке того же фрилансера
	// на тот же проект (уникальный индекс на паре project_id, freelancer_id).
	ErrDuplicateBid = errors.New("bid already exists for this project and freelancer")
	// ErrBidStateChanged возвращается, когда ставка ушла из ожидаемого статуса
	// до того, как мы успели её изменить.
	ErrBidStateChanged = errors.New("bid state changed concurrently")
)

const pqUniqueViolation = "23505"

// BidRepository отвечает за работу со ставками.
type BidRepository struct {
	db *sqlx.DB
}

// NewBidRepository создаёт новый экземпляр.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Create сохраняет новую ставку.
func (r *BidRepository) Create(ctx context.Context, bid *models.Bid) error {
	query := `
		INSERT INTO bids (project_id, freelancer_id, amount, timeline, proposal, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx,
		query,
		bid.ProjectID,
		bid.FreelancerID,
		bid.Amount,
		bid.Timeline,
		bid.Proposal,
		bid.Status,
	).Scan(&bid.ID, &bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateBid
		}
		return fmt.Errorf("bid repository: create %w", err)
	}

	return nil
}

// GetByID возвращает ставку по идентификатору.
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	if err := r.db.GetContext(ctx, &bid, `SELECT * FROM bids WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("bid repository: get by id %w", err)
	}
	return &bid, nil
}

// ListByProject возвращает все ставки проекта.
func (r *BidRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	query := `SELECT * FROM bids WHERE project_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &bids, query, projectID); err != nil {
		return nil, fmt.Errorf("bid repository: list by project %w", err)
	}
	return bids, nil
}

// ListByFreelancer возвращает ставки фрилансера.
func (r *BidRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	query := `SELECT * FROM bids WHERE freelancer_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &bids, query, freelancerID); err != nil {
		return nil, fmt.Errorf("bid repository: list by freelancer %w", err)
	}
	return bids, nil
}

// GetAcceptedByProject возвращает принятую ставку проекта, если она есть.
func (r *BidRepository) GetAcceptedByProject(ctx context.Context, projectID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	query := `SELECT * FROM bids WHERE project_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &bid, query, projectID, models.BidStatusAccepted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("bid repository: get accepted %w", err)
	}
	return &bid, nil
}

// Update изменяет pending ставку её владельца.
func (r *BidRepository) Update(ctx context.Context, bid *models.Bid) error {
	query := `
		UPDATE bids
		SET amount = $2, timeline = $3, proposal = $4, updated_at = NOW()
		WHERE id = $1 AND freelancer_id = $5 AND status = $6
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(
		ctx,
		query,
		bid.ID,
		bid.Amount,
		bid.Timeline,
		bid.Proposal,
		bid.FreelancerID,
		models.BidStatusPending,
	).Scan(&bid.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBidStateChanged
		}
		return fmt.Errorf("bid repository: update %w", err)
	}

	return nil
}

// Accept принимает ставку: в одной транзакции ставка становится accepted,
// все остальные ставки проекта — rejected, проект уходит в in_progress
// с назначенным исполнителем. Guard-условия в UPDATE перепроверяют статусы
// непосредственно перед мутацией: второй конкурентный accept не пройдёт.
func (r *BidRepository) Accept(ctx context.Context, bidID, projectID, freelancerID uuid.UUID) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("bid repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE bids SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, bidID, models.BidStatusAccepted, models.BidStatusPending)
	if err != nil {
		return fmt.Errorf("bid repository: accept bid %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err = ErrBidStateChanged
		return err
	}

	// Остальные ставки отклоняются независимо от их текущего статуса.
	if _, err = tx.ExecContext(ctx, `
		UPDATE bids SET status = $3, updated_at = NOW()
		WHERE project_id = $1 AND id <> $2 AND status <> $3
	`, projectID, bidID, models.BidStatusRejected); err != nil {
		return fmt.Errorf("bid repository: reject siblings %w", err)
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = $2, freelancer_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, projectID, models.ProjectStatusInProgress, freelancerID, models.ProjectStatusOpen)
	if err != nil {
		return fmt.Errorf("bid repository: assign project %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err = ErrProjectStateChanged
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("bid repository: accept commit %w", err)
	}

	return nil
}

// CancelPending удаляет pending ставку её владельца.
func (r *BidRepository) CancelPending(ctx context.Context, bidID, freelancerID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM bids WHERE id = $1 AND freelancer_id = $2 AND status = $3
	`, bidID, freelancerID, models.BidStatusPending)
	if err != nil {
		return fmt.Errorf("bid repository: cancel pending %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return ErrBidStateChanged
	}

	return nil
}

// CancelAccepted отзывает принятую ставку: ставка удаляется, проект
// возвращается в open без исполнителя, отклонённые ставки-соседи снова
// становятся pending — торги открываются заново.
func (r *BidRepository) CancelAccepted(ctx context.Context, bidID, projectID, freelancerID uuid.UUID) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("bid repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM bids WHERE id = $1 AND freelancer_id = $2 AND status = $3
	`, bidID, freelancerID, models.BidStatusAccepted)
	if err != nil {
		return fmt.Errorf("bid repository: delete accepted %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err = ErrBidStateChanged
		return err
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = $2, freelancer_id = NULL, completed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`, projectID, models.ProjectStatusOpen, models.ProjectStatusInProgress)
	if err != nil {
		return fmt.Errorf("bid repository: revert project %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err = ErrProjectStateChanged
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE bids SET status = $2, updated_at = NOW()
		WHERE project_id = $1 AND status = $3
	`, projectID, models.BidStatusPending, models.BidStatusRejected); err != nil {
		return fmt.Errorf("bid repository: reopen siblings %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("bid repository: cancel commit %w", err)
	}

	return nil
}
