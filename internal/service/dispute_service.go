package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/repository"
)

// DisputeRepository описывает взаимодействие сервиса с хранилищем споров.
type DisputeRepository interface {
	Create(ctx context.Context, dispute *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetPendingByProject(ctx context.Context, projectID uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Dispute, error)
	Close(ctx context.Context, id, adminID uuid.UUID) (*models.Dispute, error)
	MarkReadByAdmin(ctx context.Context, id uuid.UUID) error
	CountPendingUnread(ctx context.Context) (int, error)
}

// DisputeProjectReader описывает минимальный контракт чтения проектов.
type DisputeProjectReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// DisputeNotifier описывает зависимость сервиса от журнала уведомлений.
type DisputeNotifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, in NotificationInput) error
	NotifyAdmins(ctx context.Context, in NotificationInput) error
}

// DisputeService ведёт споры сторон проекта, арбитром которых выступает админ.
type DisputeService struct {
	repo     DisputeRepository
	projects DisputeProjectReader
	notifier DisputeNotifier
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(repo DisputeRepository, projects DisputeProjectReader, notifier DisputeNotifier) *DisputeService {
	return &DisputeService{
		repo:     repo,
		projects: projects,
		notifier: notifier,
	}
}

// Raise открывает спор по проекту от имени одной из его сторон.
// Спор возможен только пока у проекта есть действующее назначение;
// на проект допускается не более одного открытого спора.
func (s *DisputeService) Raise(ctx context.Context, principal models.Principal, projectID uuid.UUID, description string) (*models.Dispute, error) {
	if description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "описание спора не может быть пустым")
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить проект")
	}

	if project.Status != models.ProjectStatusInProgress && project.Status != models.ProjectStatusCompleted {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "спор возможен только по проекту с исполнителем")
	}
	if project.FreelancerID == nil {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "у проекта нет исполнителя")
	}

	var dispute *models.Dispute
	switch principal.ID {
	case project.ClientID:
		dispute = &models.Dispute{
			ProjectID:    projectID,
			RaisedByID:   project.ClientID,
			RaisedByRole: models.RoleClient,
			AgainstID:    *project.FreelancerID,
			AgainstRole:  models.RoleFreelancer,
		}
	case *project.FreelancerID:
		dispute = &models.Dispute{
			ProjectID:    projectID,
			RaisedByID:   *project.FreelancerID,
			RaisedByRole: models.RoleFreelancer,
			AgainstID:    project.ClientID,
			AgainstRole:  models.RoleClient,
		}
	default:
		return nil, apperror.New(apperror.ErrCodeForbidden, "спор может открыть только сторона проекта")
	}

	if _, err := s.repo.GetPendingByProject(ctx, projectID); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "по проекту уже открыт спор")
	} else if !errors.Is(err, repository.ErrDisputeNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить споры")
	}

	dispute.Description = description
	dispute.Status = models.DisputeStatusPending

	if err := s.repo.Create(ctx, dispute); err != nil {
		if errors.Is(err, repository.ErrDuplicateDispute) {
			return nil, apperror.New(apperror.ErrCodeConflict, "по проекту уже открыт спор")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось открыть спор")
	}

	_ = s.notifier.NotifyUser(ctx, dispute.AgainstID, NotificationInput{
		Type:      models.NotificationDisputeRaised,
		Content:   fmt.Sprintf("По проекту «%s» открыт спор", project.Title),
		ProjectID: &project.ID,
	})
	_ = s.notifier.NotifyAdmins(ctx, NotificationInput{
		Type:      models.NotificationDisputeRaised,
		Content:   fmt.Sprintf("Открыт спор по проекту «%s», требуется арбитраж", project.Title),
		ProjectID: &project.ID,
	})

	return dispute, nil
}

// Get возвращает спор его стороне или админу.
func (s *DisputeService) Get(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.getDispute(ctx, id)
	if err != nil {
		return nil, err
	}

	if dispute.RaisedByID != principal.ID && dispute.AgainstID != principal.ID && !principal.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "у вас нет доступа к этому спору")
	}

	return dispute, nil
}

// ListMine возвращает споры, где пользователь — одна из сторон.
func (s *DisputeService) ListMine(ctx context.Context, principal models.Principal, limit, offset int) ([]models.Dispute, error) {
	limit, offset = normalizePage(limit, offset)

	disputes, err := s.repo.ListByUser(ctx, principal.ID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить споры")
	}
	return disputes, nil
}

// ListAll возвращает все споры для админа.
func (s *DisputeService) ListAll(ctx context.Context, principal models.Principal, limit, offset int) ([]models.Dispute, error) {
	if !principal.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	limit, offset = normalizePage(limit, offset)

	disputes, err := s.repo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить споры")
	}
	return disputes, nil
}

// Close закрывает спор решением администратора и извещает обе стороны.
func (s *DisputeService) Close(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Dispute, error) {
	if !principal.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "закрыть спор может только администратор")
	}

	dispute, err := s.getDispute(ctx, id)
	if err != nil {
		return nil, err
	}

	if !models.CanDisputeTransition(dispute.Status, models.DisputeStatusClosed) {
		return nil, apperror.New(apperror.ErrCodeInvalidStateTransition, "спор уже закрыт")
	}

	closed, err := s.repo.Close(ctx, id, principal.ID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeStateChanged) {
			return nil, apperror.New(apperror.ErrCodeConflict, "состояние спора изменилось, повторите запрос")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось закрыть спор")
	}

	for _, userID := range []uuid.UUID{closed.RaisedByID, closed.AgainstID} {
		_ = s.notifier.NotifyUser(ctx, userID, NotificationInput{
			Type:      models.NotificationDisputeClosed,
			Content:   "Спор по проекту рассмотрен и закрыт администратором",
			ProjectID: &closed.ProjectID,
		})
	}

	return closed, nil
}

// MarkRead отмечает спор прочитанным админом — для бейджа арбитража.
func (s *DisputeService) MarkRead(ctx context.Context, principal models.Principal, id uuid.UUID) error {
	if !principal.IsAdmin() {
		return apperror.ErrForbidden
	}

	if err := s.repo.MarkReadByAdmin(ctx, id); err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return apperror.ErrDisputeNotFound
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось отметить спор")
	}

	return nil
}

// CountPendingUnread возвращает количество открытых непрочитанных споров.
func (s *DisputeService) CountPendingUnread(ctx context.Context, principal models.Principal) (int, error) {
	if !principal.IsAdmin() {
		return 0, apperror.ErrForbidden
	}

	count, err := s.repo.CountPendingUnread(ctx)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось посчитать споры")
	}
	return count, nil
}

func (s *DisputeService) getDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить спор")
	}
	return dispute, nil
}
