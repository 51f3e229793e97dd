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

// Ошибки уровня репозитория.
var (
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectStateChanged возвращается, когда guarded-обновление не нашло
	// строку в ожидаемом статусе: кто-то успел изменить проект раньше нас.
	ErrProjectStateChanged = errors.New("project state changed concurrently")
)

// ProjectRepository отвечает за работу с проектами.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository создаёт новый экземпляр.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `
	id, client_id, freelancer_id, title, description, budget, required_skills,
	status, deadline_at, created_at, updated_at, completed_at
`

// Create сохраняет новый проект.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (client_id, title, description, budget, required_skills, status, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		project.ClientID,
		project.Title,
		project.Description,
		project.Budget,
		project.RequiredSkills,
		project.Status,
		project.DeadlineAt,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return fmt.Errorf("project repository: create %w", err)
	}

	return nil
}

// GetByID возвращает проект по идентификатору.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("project repository: get by id %w", err)
	}
	return &project, nil
}

// ListOpen возвращает открытые проекты с пагинацией.
func (r *ProjectRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.Project, error) {
	query := `
		SELECT ` + projectColumns + `, (SELECT COUNT(*) FROM bids b WHERE b.project_id = p.id) AS bids_count
		FROM projects p
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, query, models.ProjectStatusOpen, limit, offset); err != nil {
		return nil, fmt.Errorf("project repository: list open %w", err)
	}
	return projects, nil
}

// ListByClient возвращает проекты клиента.
func (r *ProjectRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Project, error) {
	var projects []models.Project
	query := `SELECT ` + projectColumns + ` FROM projects WHERE client_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &projects, query, clientID); err != nil {
		return nil, fmt.Errorf("project repository: list by client %w", err)
	}
	return projects, nil
}

// ListByFreelancer возвращает проекты, где фрилансер назначен исполнителем.
func (r *ProjectRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Project, error) {
	var projects []models.Project
	query := `SELECT ` + projectColumns + ` FROM projects WHERE freelancer_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &projects, query, freelancerID); err != nil {
		return nil, fmt.Errorf("project repository: list by freelancer %w", err)
	}
	return projects, nil
}

// Update изменяет редактируемые поля проекта.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET title = $2, description = $3, budget = $4, required_skills = $5,
		    deadline_at = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		project.ID,
		project.Title,
		project.Description,
		project.Budget,
		project.RequiredSkills,
		project.DeadlineAt,
	).Scan(&project.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("project repository: update %w", err)
	}

	return nil
}

// Cancel переводит проект в cancelled и снимает исполнителя.
// Guard по статусу выполняется в самом UPDATE: перепроверка непосредственно
// перед мутацией, как того требует конкурентный доступ двух сторон.
func (r *ProjectRepository) Cancel(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `
		UPDATE projects
		SET status = $2, freelancer_id = NULL, completed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($3, $4)
		RETURNING ` + projectColumns

	return r.guardedUpdate(ctx, query, id, models.ProjectStatusCancelled, models.ProjectStatusClosed, models.ProjectStatusCancelled)
}

// Reopen возвращает отменённый проект в open.
func (r *ProjectRepository) Reopen(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `
		UPDATE projects
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING ` + projectColumns

	return r.guardedUpdate(ctx, query, id, models.ProjectStatusOpen, models.ProjectStatusCancelled)
}

// MarkCompleted переводит in_progress проект в completed от имени исполнителя.
func (r *ProjectRepository) MarkCompleted(ctx context.Context, id, freelancerID uuid.UUID) (*models.Project, error) {
	query := `
		UPDATE projects
		SET status = $2, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND freelancer_id = $3 AND status = $4
		RETURNING ` + projectColumns

	return r.guardedUpdate(ctx, query, id, models.ProjectStatusCompleted, freelancerID, models.ProjectStatusInProgress)
}

// UnmarkCompleted возвращает completed проект в in_progress.
func (r *ProjectRepository) UnmarkCompleted(ctx context.Context, id, freelancerID uuid.UUID) (*models.Project, error) {
	query := `
		UPDATE projects
		SET status = $2, completed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND freelancer_id = $3 AND status = $4
		RETURNING ` + projectColumns

	return r.guardedUpdate(ctx, query, id, models.ProjectStatusInProgress, freelancerID, models.ProjectStatusCompleted)
}

// CloseSettled закрывает completed проект после принятия оплаты фрилансером.
func (r *ProjectRepository) CloseSettled(ctx context.Context, id, freelancerID uuid.UUID) (*models.Project, error) {
	query := `
		UPDATE projects
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND freelancer_id = $3 AND status = $4
		RETURNING ` + projectColumns

	return r.guardedUpdate(ctx, query, id, models.ProjectStatusClosed, freelancerID, models.ProjectStatusCompleted)
}

// guardedUpdate выполняет UPDATE с guard-условием и возвращает изменённый проект.
func (r *ProjectRepository) guardedUpdate(ctx context.Context, query string, args ...interface{}) (*models.Project, error) {
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectStateChanged
		}
		return nil, fmt.Errorf("project repository: guarded update %w", err)
	}
	return &project, nil
}

// Delete удаляет проект вместе со ставками (каскад по внешнему ключу).
// Разрешён только для open и cancelled проектов.
func (r *ProjectRepository) Delete(ctx context.Context, id, clientID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND client_id = $2 AND status IN ($3, $4)
	`, id, clientID, models.ProjectStatusOpen, models.ProjectStatusCancelled)
	if err != nil {
		return fmt.Errorf("project repository: delete %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("project repository: delete rows affected %w", err)
	}

	if rowsAffected == 0 {
		return ErrProjectStateChanged
	}

	return nil
}

// HasClosedProjectBetween отвечает на запрос «есть ли у клиента закрытый
// проект с этим фрилансером» — им гейтится право оставить отзыв.
func (r *ProjectRepository) HasClosedProjectBetween(ctx context.Context, clientID, freelancerID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM projects
			WHERE client_id = $1 AND freelancer_id = $2 AND status = $3
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, clientID, freelancerID, models.ProjectStatusClosed); err != nil {
		return false, fmt.Errorf("project repository: has closed project %w", err)
	}
	return exists, nil
}
