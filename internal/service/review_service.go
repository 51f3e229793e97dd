package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/repository"
)

// ReviewRepository описывает взаимодействие сервиса с хранилищем отзывов.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByProjectAndReviewer(ctx context.Context, projectID, reviewerID uuid.UUID) (*models.Review, error)
	ListByReviewedID(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error)
	ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]models.Review, error)
	GetAverageRating(ctx context.Context, userID uuid.UUID) (float64, int, error)
}

// ReviewProjectReader описывает минимальный контракт чтения проектов.
type ReviewProjectReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	HasClosedProjectBetween(ctx context.Context, clientID, freelancerID uuid.UUID) (bool, error)
}

// ReviewService содержит бизнес-логику отзывов после закрытия проекта.
type ReviewService struct {
	repo     ReviewRepository
	projects ReviewProjectReader
}

// NewReviewService создаёт сервис отзывов.
func NewReviewService(repo ReviewRepository, projects ReviewProjectReader) *ReviewService {
	return &ReviewService{
		repo:     repo,
		projects: projects,
	}
}

// ReviewInput описывает входные данные отзыва.
type ReviewInput struct {
	ProjectID uuid.UUID
	Rating    int
	Comment   *string
}

// UserRating агрегирует рейтинг пользователя.
type UserRating struct {
	AverageRating float64 `json:"average_rating"`
	ReviewsCount  int     `json:"reviews_count"`
}

// CreateReview оставляет отзыв одной стороны закрытого проекта о другой.
func (s *ReviewService) CreateReview(ctx context.Context, principal models.Principal, in ReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "оценка должна быть от 1 до 5")
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить проект")
	}

	if project.Status != models.ProjectStatusClosed || project.FreelancerID == nil {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "отзыв можно оставить только по закрытому проекту")
	}

	var reviewedID uuid.UUID
	switch principal.ID {
	case project.ClientID:
		reviewedID = *project.FreelancerID
	case *project.FreelancerID:
		reviewedID = project.ClientID
	default:
		return nil, apperror.New(apperror.ErrCodeForbidden, "отзыв может оставить только сторона проекта")
	}

	review := &models.Review{
		ProjectID:  in.ProjectID,
		ReviewerID: principal.ID,
		ReviewedID: reviewedID,
		Rating:     in.Rating,
		Comment:    in.Comment,
	}

	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, apperror.New(apperror.ErrCodeConflict, "вы уже оставили отзыв по этому проекту")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить отзыв")
	}

	return review, nil
}

// CanReview сообщает, может ли клиент оставить отзыв о фрилансере:
// между ними должен быть хотя бы один закрытый проект.
func (s *ReviewService) CanReview(ctx context.Context, clientID, freelancerID uuid.UUID) (bool, error) {
	ok, err := s.projects.HasClosedProjectBetween(ctx, clientID, freelancerID)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить право на отзыв")
	}
	return ok, nil
}

// ListUserReviews возвращает отзывы о пользователе.
func (s *ReviewService) ListUserReviews(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	limit, offset = normalizePage(limit, offset)

	reviews, err := s.repo.ListByReviewedID(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить отзывы")
	}
	return reviews, nil
}

// ListProjectReviews возвращает отзывы по проекту.
func (s *ReviewService) ListProjectReviews(ctx context.Context, projectID uuid.UUID) ([]models.Review, error) {
	reviews, err := s.repo.ListByProjectID(ctx, projectID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить отзывы")
	}
	return reviews, nil
}

// GetUserRating возвращает средний рейтинг пользователя.
func (s *ReviewService) GetUserRating(ctx context.Context, userID uuid.UUID) (*UserRating, error) {
	avg, count, err := s.repo.GetAverageRating(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось посчитать рейтинг")
	}

	return &UserRating{
		AverageRating: avg,
		ReviewsCount:  count,
	}, nil
}
