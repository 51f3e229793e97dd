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
	ErrEscrowNotFound = errors.New("escrow not found")
	// ErrDuplicateEscrow возвращается при попытке второго финансирования:
	// частичный уникальный индекс допускает не более одного живого
	// (не отменённого) escrow на проект.
	ErrDuplicateEscrow = errors.New("live escrow already exists for this project")
	// ErrEscrowStateChanged возвращается, когда compare-and-swap по статусу
	// не нашёл строку в ожидаемом статусе-предшественнике.
	ErrEscrowStateChanged = errors.New("escrow state changed concurrently")
)

// EscrowRepository отвечает за учёт средств по принятым ставкам.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт новый экземпляр.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create сохраняет новый escrow в статусе pending.
func (r *EscrowRepository) Create(ctx context.Context, escrow *models.Escrow) error {
	query := `
		INSERT INTO escrows (project_id, bid_id, client_id, freelancer_id, amount, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(
		ctx,
		query,
		escrow.ProjectID,
		escrow.BidID,
		escrow.ClientID,
		escrow.FreelancerID,
		escrow.Amount,
		escrow.Status,
		escrow.Notes,
	).Scan(&escrow.ID, &escrow.CreatedAt, &escrow.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateEscrow
		}
		return fmt.Errorf("escrow repository: create %w", err)
	}

	return nil
}

// GetByID возвращает escrow по идентификатору.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := r.db.GetContext(ctx, &escrow, `SELECT * FROM escrows WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by id %w", err)
	}
	return &escrow, nil
}

// GetLiveByProjectID возвращает живой (не отменённый) escrow проекта.
func (r *EscrowRepository) GetLiveByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	query := `SELECT * FROM escrows WHERE project_id = $1 AND status <> $2`
	if err := r.db.GetContext(ctx, &escrow, query, projectID, models.EscrowStatusCancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get live by project %w", err)
	}
	return &escrow, nil
}

// ListByUser возвращает escrow, где пользователь — клиент или исполнитель.
func (r *EscrowRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error) {
	var escrows []models.Escrow
	query := `
		SELECT * FROM escrows
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &escrows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("escrow repository: list by user %w", err)
	}
	return escrows, nil
}

// ListAll возвращает все escrow для админской выборки.
func (r *EscrowRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Escrow, error) {
	var escrows []models.Escrow
	query := `SELECT * FROM escrows ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &escrows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("escrow repository: list all %w", err)
	}
	return escrows, nil
}

// Advance переводит escrow из ожидаемого статуса from в статус to.
// Это compare-and-swap по полю status: строка меняется только если она
// всё ещё в статусе-предшественнике. Вход в ready_for_release штампует
// client_approved_at, вход в released — admin_released_at.
func (r *EscrowRepository) Advance(ctx context.Context, id uuid.UUID, from, to string, notes *string) (*models.Escrow, error) {
	query := `
		UPDATE escrows
		SET status = $3,
		    notes = COALESCE($4, notes),
		    client_approved_at = CASE WHEN $3 = $5 THEN NOW() ELSE client_approved_at END,
		    admin_released_at  = CASE WHEN $3 = $6 THEN NOW() ELSE admin_released_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING *
	`

	var escrow models.Escrow
	err := r.db.GetContext(ctx, &escrow, query,
		id, from, to, notes,
		models.EscrowStatusReadyForRelease, models.EscrowStatusReleased,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowStateChanged
		}
		return nil, fmt.Errorf("escrow repository: advance %w", err)
	}

	return &escrow, nil
}

// ReleaseAndCloseProject выполняет релиз средств и админское закрытие
// проекта одной транзакцией — единственное место, где escrow трогает проект.
func (r *EscrowRepository) ReleaseAndCloseProject(ctx context.Context, id uuid.UUID, notes *string) (escrow *models.Escrow, err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("escrow repository: begin tx %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var released models.Escrow
	err = tx.GetContext(ctx, &released, `
		UPDATE escrows
		SET status = $3, notes = COALESCE($4, notes), admin_released_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING *
	`, id, models.EscrowStatusReadyForRelease, models.EscrowStatusReleased, notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrEscrowStateChanged
			return nil, err
		}
		return nil, fmt.Errorf("escrow repository: release %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
	`, released.ProjectID, models.ProjectStatusClosed, models.ProjectStatusCompleted, models.ProjectStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: close project %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		err = ErrProjectStateChanged
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow repository: release commit %w", err)
	}

	return &released, nil
}
