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

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) Create(ctx context.Context, escrow *models.Escrow) error {
	args := m.Called(ctx, escrow)
	return args.Error(0)
}

func (m *mockEscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) GetLiveByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) ListAll(ctx context.Context, limit, offset int) ([]models.Escrow, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Advance(ctx context.Context, id uuid.UUID, from, to string, notes *string) (*models.Escrow, error) {
	args := m.Called(ctx, id, from, to, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) ReleaseAndCloseProject(ctx context.Context, id uuid.UUID, notes *string) (*models.Escrow, error) {
	args := m.Called(ctx, id, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

type mockEscrowProjectReader struct {
	mock.Mock
}

func (m *mockEscrowProjectReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

type mockEscrowBidReader struct {
	mock.Mock
}

func (m *mockEscrowBidReader) GetAcceptedByProject(ctx context.Context, projectID uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

type mockEscrowNotifier struct {
	mock.Mock
}

func (m *mockEscrowNotifier) NotifyUser(ctx context.Context, userID uuid.UUID, in NotificationInput) error {
	args := m.Called(ctx, userID, in)
	return args.Error(0)
}

func (m *mockEscrowNotifier) NotifyAdmins(ctx context.Context, in NotificationInput) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func newEscrowService() (*EscrowService, *mockEscrowRepo, *mockEscrowProjectReader, *mockEscrowBidReader, *mockEscrowNotifier) {
	repo := new(mockEscrowRepo)
	projects := new(mockEscrowProjectReader)
	bids := new(mockEscrowBidReader)
	notifier := new(mockEscrowNotifier)
	return NewEscrowService(repo, projects, bids, notifier), repo, projects, bids, notifier
}

func TestEscrowService_Fund_Success(t *testing.T) {
	svc, repo, projects, bids, notifier := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	projectID := uuid.New()
	freelancerID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     client.ID,
		FreelancerID: &freelancerID,
		Title:        "Бот",
		Status:       models.ProjectStatusInProgress,
	}, nil)
	bids.On("GetAcceptedByProject", ctx, projectID).Return(&models.Bid{
		ID:           uuid.New(),
		ProjectID:    projectID,
		FreelancerID: freelancerID,
		Amount:       30000,
		Status:       models.BidStatusAccepted,
	}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Escrow")).Return(nil)
	notifier.On("NotifyUser", ctx, freelancerID, mock.AnythingOfType("service.NotificationInput")).Return(nil)
	notifier.On("NotifyAdmins", ctx, mock.AnythingOfType("service.NotificationInput")).Return(nil)

	escrow, err := svc.Fund(ctx, client, projectID, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusPending, escrow.Status)
	// Сумма берётся из принятой ставки, не из запроса.
	assert.Equal(t, float64(30000), escrow.Amount)
	notifier.AssertExpectations(t)
}

func TestEscrowService_Fund_OnlyOwner(t *testing.T) {
	svc, _, projects, _, _ := newEscrowService()
	ctx := context.Background()
	stranger := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	projectID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:       projectID,
		ClientID: uuid.New(),
		Status:   models.ProjectStatusInProgress,
	}, nil)

	_, err := svc.Fund(ctx, stranger, projectID, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestEscrowService_Fund_ClosedOrCancelledProject(t *testing.T) {
	svc, _, projects, _, _ := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	closedID := uuid.New()
	cancelledID := uuid.New()
	freelancerID := uuid.New()

	projects.On("GetByID", ctx, closedID).Return(&models.Project{
		ID:           closedID,
		ClientID:     client.ID,
		FreelancerID: &freelancerID,
		Status:       models.ProjectStatusClosed,
	}, nil)
	projects.On("GetByID", ctx, cancelledID).Return(&models.Project{
		ID:       cancelledID,
		ClientID: client.ID,
		Status:   models.ProjectStatusCancelled,
	}, nil)

	_, err := svc.Fund(ctx, client, closedID, nil)
	assert.True(t, apperror.IsPreconditionFailed(err))

	_, err = svc.Fund(ctx, client, cancelledID, nil)
	assert.True(t, apperror.IsPreconditionFailed(err))
}

func TestEscrowService_Fund_NoFreelancerAssigned(t *testing.T) {
	svc, _, projects, _, _ := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	projectID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:       projectID,
		ClientID: client.ID,
		Status:   models.ProjectStatusOpen,
	}, nil)

	_, err := svc.Fund(ctx, client, projectID, nil)
	assert.True(t, apperror.IsPreconditionFailed(err))
}

func TestEscrowService_Fund_CompletedProjectAllowed(t *testing.T) {
	svc, repo, projects, bids, notifier := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	projectID := uuid.New()
	freelancerID := uuid.New()

	// Финансирование допустимо и после отметки о выполнении:
	// принятая ставка всё ещё действует.
	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     client.ID,
		FreelancerID: &freelancerID,
		Title:        "Бот",
		Status:       models.ProjectStatusCompleted,
	}, nil)
	bids.On("GetAcceptedByProject", ctx, projectID).Return(&models.Bid{
		ID:           uuid.New(),
		ProjectID:    projectID,
		FreelancerID: freelancerID,
		Amount:       15000,
		Status:       models.BidStatusAccepted,
	}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Escrow")).Return(nil)
	notifier.On("NotifyUser", ctx, freelancerID, mock.AnythingOfType("service.NotificationInput")).Return(nil)
	notifier.On("NotifyAdmins", ctx, mock.AnythingOfType("service.NotificationInput")).Return(nil)

	escrow, err := svc.Fund(ctx, client, projectID, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusPending, escrow.Status)
}

func TestEscrowService_Fund_NoAcceptedBid(t *testing.T) {
	svc, _, projects, bids, _ := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	projectID := uuid.New()
	freelancerID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     client.ID,
		FreelancerID: &freelancerID,
		Status:       models.ProjectStatusInProgress,
	}, nil)
	bids.On("GetAcceptedByProject", ctx, projectID).Return(nil, repository.ErrBidNotFound)

	_, err := svc.Fund(ctx, client, projectID, nil)
	assert.True(t, apperror.IsPreconditionFailed(err))
}

func TestEscrowService_Fund_DuplicateLiveEscrow(t *testing.T) {
	svc, repo, projects, bids, _ := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	projectID := uuid.New()
	freelancerID := uuid.New()

	projects.On("GetByID", ctx, projectID).Return(&models.Project{
		ID:           projectID,
		ClientID:     client.ID,
		FreelancerID: &freelancerID,
		Status:       models.ProjectStatusInProgress,
	}, nil)
	bids.On("GetAcceptedByProject", ctx, projectID).Return(&models.Bid{
		ID:           uuid.New(),
		FreelancerID: freelancerID,
		Amount:       1000,
	}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.Escrow")).Return(repository.ErrDuplicateEscrow)

	_, err := svc.Fund(ctx, client, projectID, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestEscrowService_StartWork_Success(t *testing.T) {
	svc, repo, _, _, notifier := newEscrowService()
	ctx := context.Background()
	freelancer := models.Principal{ID: uuid.New(), Role: models.RoleFreelancer}
	escrowID := uuid.New()
	clientID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:           escrowID,
		ProjectID:    uuid.New(),
		ClientID:     clientID,
		FreelancerID: freelancer.ID,
		Status:       models.EscrowStatusPending,
	}, nil)
	repo.On("Advance", ctx, escrowID, models.EscrowStatusPending, models.EscrowStatusInProgress, (*string)(nil)).
		Return(&models.Escrow{ID: escrowID, Status: models.EscrowStatusInProgress}, nil)
	notifier.On("NotifyUser", ctx, clientID, mock.AnythingOfType("service.NotificationInput")).Return(nil)

	advanced, err := svc.StartWork(ctx, freelancer, escrowID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusInProgress, advanced.Status)
}

func TestEscrowService_StartWork_OnlyFreelancer(t *testing.T) {
	svc, repo, _, _, _ := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	escrowID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:           escrowID,
		ClientID:     client.ID,
		FreelancerID: uuid.New(),
		Status:       models.EscrowStatusPending,
	}, nil)

	_, err := svc.StartWork(ctx, client, escrowID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestEscrowService_StartWork_WrongStatus(t *testing.T) {
	svc, repo, _, _, _ := newEscrowService()
	ctx := context.Background()
	freelancer := models.Principal{ID: uuid.New(), Role: models.RoleFreelancer}
	escrowID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:           escrowID,
		FreelancerID: freelancer.ID,
		Status:       models.EscrowStatusInProgress,
	}, nil)

	_, err := svc.StartWork(ctx, freelancer, escrowID)
	assert.True(t, apperror.IsInvalidStateTransition(err))
}

func TestEscrowService_Approve_Success(t *testing.T) {
	svc, repo, _, _, notifier := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	escrowID := uuid.New()
	freelancerID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:           escrowID,
		ProjectID:    uuid.New(),
		ClientID:     client.ID,
		FreelancerID: freelancerID,
		Amount:       5000,
		Status:       models.EscrowStatusInProgress,
	}, nil)
	repo.On("Advance", ctx, escrowID, models.EscrowStatusInProgress, models.EscrowStatusReadyForRelease, (*string)(nil)).
		Return(&models.Escrow{ID: escrowID, Status: models.EscrowStatusReadyForRelease}, nil)
	notifier.On("NotifyUser", ctx, freelancerID, mock.AnythingOfType("service.NotificationInput")).Return(nil)
	notifier.On("NotifyAdmins", ctx, mock.AnythingOfType("service.NotificationInput")).Return(nil)

	advanced, err := svc.Approve(ctx, client, escrowID, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReadyForRelease, advanced.Status)
	notifier.AssertExpectations(t)
}

func TestEscrowService_Release_OnlyAdmin(t *testing.T) {
	svc, _, _, _, _ := newEscrowService()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}

	_, err := svc.Release(context.Background(), client, uuid.New(), nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestEscrowService_Release_NotReady(t *testing.T) {
	svc, repo, _, _, _ := newEscrowService()
	ctx := context.Background()
	admin := models.Principal{ID: uuid.New(), Role: models.RoleAdmin}
	escrowID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:     escrowID,
		Status: models.EscrowStatusInProgress,
	}, nil)

	_, err := svc.Release(ctx, admin, escrowID, nil)
	assert.True(t, apperror.IsInvalidStateTransition(err))
}

func TestEscrowService_Release_ClosesProject(t *testing.T) {
	svc, repo, _, _, notifier := newEscrowService()
	ctx := context.Background()
	admin := models.Principal{ID: uuid.New(), Role: models.RoleAdmin}
	escrowID := uuid.New()
	clientID := uuid.New()
	freelancerID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:     escrowID,
		Status: models.EscrowStatusReadyForRelease,
	}, nil)
	repo.On("ReleaseAndCloseProject", ctx, escrowID, (*string)(nil)).Return(&models.Escrow{
		ID:           escrowID,
		ProjectID:    uuid.New(),
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Amount:       5000,
		Status:       models.EscrowStatusReleased,
	}, nil)
	notifier.On("NotifyUser", ctx, clientID, mock.AnythingOfType("service.NotificationInput")).Return(nil)
	notifier.On("NotifyUser", ctx, freelancerID, mock.AnythingOfType("service.NotificationInput")).Return(nil)

	released, err := svc.Release(ctx, admin, escrowID, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, released.Status)
	notifier.AssertNumberOfCalls(t, "NotifyUser", 2)
}

func TestEscrowService_Release_ConcurrentChange(t *testing.T) {
	svc, repo, _, _, _ := newEscrowService()
	ctx := context.Background()
	admin := models.Principal{ID: uuid.New(), Role: models.RoleAdmin}
	escrowID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:     escrowID,
		Status: models.EscrowStatusReadyForRelease,
	}, nil)
	repo.On("ReleaseAndCloseProject", ctx, escrowID, (*string)(nil)).Return(nil, repository.ErrEscrowStateChanged)

	_, err := svc.Release(ctx, admin, escrowID, nil)
	assert.True(t, apperror.IsConflict(err))
}

func TestEscrowService_Cancel_ByParty(t *testing.T) {
	svc, repo, _, _, notifier := newEscrowService()
	ctx := context.Background()
	client := models.Principal{ID: uuid.New(), Role: models.RoleClient}
	escrowID := uuid.New()
	freelancerID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:           escrowID,
		ProjectID:    uuid.New(),
		ClientID:     client.ID,
		FreelancerID: freelancerID,
		Amount:       5000,
		Status:       models.EscrowStatusInProgress,
	}, nil)
	repo.On("Advance", ctx, escrowID, models.EscrowStatusInProgress, models.EscrowStatusCancelled, (*string)(nil)).
		Return(&models.Escrow{ID: escrowID, Status: models.EscrowStatusCancelled}, nil)
	notifier.On("NotifyUser", ctx, freelancerID, mock.AnythingOfType("service.NotificationInput")).Return(nil)
	notifier.On("NotifyAdmins", ctx, mock.AnythingOfType("service.NotificationInput")).Return(nil)

	cancelled, err := svc.Cancel(ctx, client, escrowID, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusCancelled, cancelled.Status)
	// Инициатор отмены уведомление не получает.
	notifier.AssertNumberOfCalls(t, "NotifyUser", 1)
}

func TestEscrowService_Cancel_ReleasedEscrow(t *testing.T) {
	svc, repo, _, _, _ := newEscrowService()
	ctx := context.Background()
	admin := models.Principal{ID: uuid.New(), Role: models.RoleAdmin}
	escrowID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:     escrowID,
		Status: models.EscrowStatusReleased,
	}, nil)

	_, err := svc.Cancel(ctx, admin, escrowID, nil)
	assert.True(t, apperror.IsInvalidStateTransition(err))
}

func TestEscrowService_Cancel_Stranger(t *testing.T) {
	svc, repo, _, _, _ := newEscrowService()
	ctx := context.Background()
	stranger := models.Principal{ID: uuid.New(), Role: models.RoleFreelancer}
	escrowID := uuid.New()

	repo.On("GetByID", ctx, escrowID).Return(&models.Escrow{
		ID:           escrowID,
		ClientID:     uuid.New(),
		FreelancerID: uuid.New(),
		Status:       models.EscrowStatusPending,
	}, nil)

	_, err := svc.Cancel(ctx, stranger, escrowID, nil)
	assert.True(t, apperror.IsForbidden(err))
}

func TestEscrowService_Get_PartyOrAdmin(t *testing.T) {
	svc, repo, _, _, _ := newEscrowService()
	ctx := context.Background()
	escrowID := uuid.New()
	clientID := uuid.New()

	escrow := &models.Escrow{
		ID:           escrowID,
		ClientID:     clientID,
		FreelancerID: uuid.New(),
		Status:       models.EscrowStatusPending,
	}
	repo.On("GetByID", ctx, escrowID).Return(escrow, nil)

	got, err := svc.Get(ctx, models.Principal{ID: clientID, Role: models.RoleClient}, escrowID)
	assert.NoError(t, err)
	assert.Equal(t, escrow, got)

	_, err = svc.Get(ctx, models.Principal{ID: uuid.New(), Role: models.RoleClient}, escrowID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.Get(ctx, models.Principal{ID: uuid.New(), Role: models.RoleAdmin}, escrowID)
	assert.NoError(t, err)
}

func TestEscrowService_ListAll_AdminOnly(t *testing.T) {
	svc, repo, _, _, _ := newEscrowService()
	ctx := context.Background()

	repo.On("ListAll", ctx, 20, 0).Return([]models.Escrow{}, nil)

	_, err := svc.ListAll(ctx, models.Principal{ID: uuid.New(), Role: models.RoleClient}, 20, 0)
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.ListAll(ctx, models.Principal{ID: uuid.New(), Role: models.RoleAdmin}, 20, 0)
	assert.NoError(t, err)
}
