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
	ErrReviewNotFound = errors.New("review not found")
	// ErrDuplicateReview возвращается при повторном отзыве на тот же проект.
	ErrDuplicateReview = errors.New("review already exists for this project and reviewer")
)

// ReviewRepository отвечает за работу с отзывами.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository создаёт новый экземпляр.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create сохраняет новый отзыв.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (project_id, reviewer_id, reviewed_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(
		ctx,
		query,
		review.ProjectID,
		review.ReviewerID,
		review.ReviewedID,
		review.Rating,
		review.Comment,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateReview
		}
		return fmt.Errorf("review repository: create %w", err)
	}

	return nil
}

// GetByProjectAndReviewer возвращает отзыв пользователя на проект.
func (r *ReviewRepository) GetByProjectAndReviewer(ctx context.Context, projectID, reviewerID uuid.UUID) (*models.Review, error) {
	var review models.Review
	query := `SELECT * FROM reviews WHERE project_id = $1 AND reviewer_id = $2`
	if err := r.db.GetContext(ctx, &review, query, projectID, reviewerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("review repository: get by project and reviewer %w", err)
	}
	return &review, nil
}

// ListByReviewedID возвращает отзывы о пользователе.
func (r *ReviewRepository) ListByReviewedID(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error) {
	var reviews []models.Review
	query := `SELECT * FROM reviews WHERE reviewed_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &reviews, query, reviewedID, limit, offset); err != nil {
		return nil, fmt.Errorf("review repository: list by reviewed %w", err)
	}
	return reviews, nil
}

// ListByProjectID возвращает отзывы по проекту.
func (r *ReviewRepository) ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	query := `SELECT * FROM reviews WHERE project_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &reviews, query, projectID); err != nil {
		return nil, fmt.Errorf("review repository: list by project %w", err)
	}
	return reviews, nil
}

// GetAverageRating возвращает средний рейтинг и количество отзывов.
func (r *ReviewRepository) GetAverageRating(ctx context.Context, userID uuid.UUID) (float64, int, error) {
	var result struct {
		Avg   sql.NullFloat64 `db:"avg"`
		Count int             `db:"count"`
	}
	query := `SELECT AVG(rating) AS avg, COUNT(*) AS count FROM reviews WHERE reviewed_id = $1`
	if err := r.db.GetContext(ctx, &result, query, userID); err != nil {
		return 0, 0, fmt.Errorf("review repository: average rating %w", err)
	}
	return result.Avg.Float64, result.Count, nil
}
