package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/repository"
)

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepo) GetByProjectAndReviewer(ctx context.Context, projectID, reviewerID uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, projectID, reviewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *mockReviewRepo) ListByReviewedID(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error) {
	args := m.Called(ctx, reviewedID, limit, offset)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *mockReviewRepo) ListByProjectID(ctx context.Context, projectID uuid.UUID) ([]models.Review, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *mockReviewRepo) GetAverageRating(ctx context.Context, userID uuid.UUID) (float64, int, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Int(1), args.Error(2)
}

type mockReviewProjectReader struct {
	mock.Mock
}

func (m *mockReviewProjectReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *mockReviewProjectReader) HasClosedProjectBetween(ctx context.Context, clientID, freelancerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, clientID, freelancerID)
	return args.Bool(0), args.Error(1)
}

func newReviewService() (*ReviewService, *mockReviewRepo, *mockReviewProjectReader) {
	repo := new(mockReviewRepo)
	projects := new(mockReviewProjectReader)
	return NewReviewService(repo, projects), repo, projects
}

func TestReviewService_CreateReview_ClientReviewsFreelancer(t *testing.T) {
	svc, repo, projects := newReviewService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	freelancerID := uuid.New()
	projectID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     client.ID,
		FreelancerID: &freelancerID,
		Status:       models.ProjectStatusClosed,
	}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Review")).Return(nil)

	review, err := svc.CreateReview(ctx, client, ReviewInput{ProjectID: projectID, Rating: 5})
	assert.NoError(t, err)
	assert.Equal(t, client.ID, review.ReviewerID)
	assert.Equal(t, freelancerID, review.ReviewedID)
}

func TestReviewService_CreateReview_FreelancerReviewsClient(t *testing.T) {
	svc, repo, projects := newReviewService()
	ctx := context.Background()
	freelancer := models.Principal{ID: uuid.New(), Role: models.RoleFreelancer}
	clientID := uuid.New()
	projectID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     clientID,
		FreelancerID: &freelancer.ID,
		Status:       models.ProjectStatusClosed,
	}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Review")).Return(nil)

	review, err := svc.CreateReview(ctx, freelancer, ReviewInput{ProjectID: projectID, Rating: 4})
	assert.NoError(t, err)
	assert.Equal(t, clientID, review.ReviewedID)
}

func TestReviewService_CreateReview_RatingBounds(t *testing.T) {
	svc, _, _ := newReviewService()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}

	_, err := svc.CreateReview(context.Background(), client, ReviewInput{ProjectID: uuid.New(), Rating: 0})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateReview(context.Background(), client, ReviewInput{ProjectID: uuid.New(), Rating: 6})
	assert.True(t, apperror.IsValidation(err))
}

func TestReviewService_CreateReview_OnlyClosedProject(t *testing.T) {
	svc, _, projects := newReviewService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	freelancerID := uuid.New()
	projectID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     client.ID,
		FreelancerID: &freelancerID,
		Status:       models.ProjectStatusCompleted,
	}, nil)

	_, err := svc.CreateReview(ctx, client, ReviewInput{ProjectID: projectID, Rating: 5})
	assert.True(t, apperror.IsPreconditionFailed(err))
}

func TestReviewService_CreateReview_Outsider(t *testing.T) {
	svc, _, projects := newReviewService()
	ctx := context.Background()
	stranger := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	freelancerID := uuid.New()
	projectID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     uuid.New(),
		FreelancerID: &freelancerID,
		Status:       models.ProjectStatusClosed,
	}, nil)

	_, err := svc.CreateReview(ctx, stranger, ReviewInput{ProjectID: projectID, Rating: 5})
	assert.True(t, apperror.IsForbidden(err))
}

func TestReviewService_CreateReview_Duplicate(t *testing.T) {
	svc, repo, projects := newReviewService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	freelancerID := uuid.New()
	projectID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     client.ID,
		FreelancerID: &freelancerID,
		Status:       models.ProjectStatusClosed,
	}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Review")).Return(repository.ErrDuplicateReview)

	_, err := svc.CreateReview(ctx, client, ReviewInput{ProjectID: projectID, Rating: 5})
	assert.True(t, apperror.IsConflict(err))
}

func TestReviewService_CanReview(t *testing.T) {
	svc, _, projects := newReviewService()
	ctx := context.Background()
	clientID := uuid.New()
	freelancerID := uuid.New()

	projects.On("HasClosedProjectBetween", ctx, clientID, freelancerID).Return(true, nil)

	ok, err := svc.CanReview(ctx, clientID, freelancerID)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestReviewService_GetUserRating(t *testing.T) {
	svc, repo, _ := newReviewService()
	ctx := context.Background()
	userID := uuid.New()

	repo.On("GetAverageRating", ctx, userID).Return(4.5, 12, nil)

	rating, err := svc.GetUserRating(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, 4.5, rating.AverageRating)
	assert.Equal(t, 12, rating.ReviewsCount)
}
