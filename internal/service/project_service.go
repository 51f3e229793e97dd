package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-backend/internal/logger"
	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/repository"
)

// ProjectRepository описывает взаимодействие сервиса с хранилищем проектов.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Project, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Project, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Cancel(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Reopen(ctx context.Context, id uuid.UUID) (*models.Project, error)
	MarkCompleted(ctx context.Context, id, freelancerID uuid.UUID) (*models.Project, error)
	UnmarkCompleted(ctx context.Context, id, freelancerID uuid.UUID) (*models.Project, error)
	CloseSettled(ctx context.Context, id, freelancerID uuid.UUID) (*models.Project, error)
	Delete(ctx context.Context, id, clientID uuid.UUID) error
}

// ProjectBidReader описывает минимальный контракт чтения ставок.
type ProjectBidReader interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Bid, error)
}

// ProjectEscrowStore описывает минимальный контракт работы с escrow:
// чтение живого escrow проекта и продвижение его статуса.
type ProjectEscrowStore interface {
	GetLiveByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Escrow, error)
	Advance(ctx context.Context, id uuid.UUID, from, to string, notes *string) (*models.Escrow, error)
}

// ProjectNotifier описывает зависимость сервиса от журнала уведомлений.
type ProjectNotifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, in NotificationInput) error
	HasPaymentRequest(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

// ProjectService координирует жизненный цикл проекта.
// Смена статуса всегда проверяется дважды: сначала по загруженному снимку
// (чтобы отличить недопустимый переход от гонки), затем guard-условием
// в самом UPDATE. Провал второй проверки означает конкурентную правку.
type ProjectService struct {
	repo     ProjectRepository
	bids     ProjectBidReader
	escrows  ProjectEscrowStore
	notifier ProjectNotifier
}

// NewProjectService создаёт сервис проектов.
func NewProjectService(repo ProjectRepository, bids ProjectBidReader, escrows ProjectEscrowStore, notifier ProjectNotifier) *ProjectService {
	return &ProjectService{
		repo:     repo,
		bids:     bids,
		escrows:  escrows,
		notifier: notifier,
	}
}

// CreateProjectInput описывает входные данные создания проекта.
type CreateProjectInput struct {
	Title          string
	Description    string
	Budget         float64
	RequiredSkills []string
	DeadlineAt     *time.Time
}

// UpdateProjectInput описывает входные данные обновления проекта.
type UpdateProjectInput struct {
	ProjectID      uuid.UUID
	Title          string
	Description    string
	Budget         float64
	RequiredSkills []string
	DeadlineAt     *time.Time
}

// CreateProject создаёт открытый проект от имени клиента.
func (s *ProjectService) CreateProject(ctx context.Context, principal models.Principal, in CreateProjectInput) (*models.Project, error) {
	if !principal.IsClient() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать проекты может только клиент")
	}

	if err := validateProjectInput(in.Title, in.Description, in.Budget, in.DeadlineAt); err != nil {
		return nil, err
	}

	project := &models.Project{
		ClientID:       principal.ID,
		Title:          in.Title,
		Description:    in.Description,
		Budget:         in.Budget,
		RequiredSkills: in.RequiredSkills,
		Status:         models.ProjectStatusOpen,
		DeadlineAt:     in.DeadlineAt,
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать проект")
	}

	return project, nil
}

// GetProject возвращает проект по идентификатору.
func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить проект")
	}
	return project, nil
}

// ListOpenProjects возвращает открытые проекты.
func (s *ProjectService) ListOpenProjects(ctx context.Context, limit, offset int) ([]models.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	projects, err := s.repo.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить проекты")
	}
	return projects, nil
}

// ListMyProjects возвращает проекты пользователя в его роли: размещённые
// для клиента, назначенные — для фрилансера.
func (s *ProjectService) ListMyProjects(ctx context.Context, principal models.Principal) ([]models.Project, error) {
	var (
		projects []models.Project
		err      error
	)
	switch {
	case principal.IsClient():
		projects, err = s.repo.ListByClient(ctx, principal.ID)
	case principal.IsFreelancer():
		projects, err = s.repo.ListByFreelancer(ctx, principal.ID)
	default:
		return nil, apperror.ErrForbidden
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить проекты")
	}

	return projects, nil
}

// UpdateProject изменяет редактируемые поля проекта. Доступно владельцу
// вплоть до закрытия или отмены; ставки сверяются с актуальным бюджетом.
func (s *ProjectService) UpdateProject(ctx context.Context, principal models.Principal, in UpdateProjectInput) (*models.Project, error) {
	project, err := s.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	if project.ClientID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "у вас нет прав на изменение проекта")
	}

	if project.Status == models.ProjectStatusClosed || project.Status == models.ProjectStatusCancelled {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "закрытый или отменённый проект нельзя редактировать")
	}

	if err := validateProjectInput(in.Title, in.Description, in.Budget, in.DeadlineAt); err != nil {
		return nil, err
	}

	project.Title = in.Title
	project.Description = in.Description
	project.Budget = in.Budget
	project.RequiredSkills = in.RequiredSkills
	project.DeadlineAt = in.DeadlineAt

	if err := s.repo.Update(ctx, project); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось обновить проект")
	}

	return project, nil
}

// CancelProject отменяет проект. Доступно владельцу и админу из любого
// незакрытого статуса; живой escrow блокирует отмену.
func (s *ProjectService) CancelProject(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if project.ClientID != principal.ID && !principal.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "у вас нет прав на отмену проекта")
	}

	if !models.CanProjectTransition(project.Status, models.ProjectStatusCancelled) {
		return nil, invalidProjectTransition(project.Status, models.ProjectStatusCancelled)
	}

	if _, err := s.escrows.GetLiveByProjectID(ctx, id); err == nil {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "сначала отмените escrow по проекту")
	} else if !errors.Is(err, repository.ErrEscrowNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить escrow")
	}

	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectStateChanged) {
			return nil, projectStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось отменить проект")
	}

	if project.FreelancerID != nil {
		_ = s.notifier.NotifyUser(ctx, *project.FreelancerID, NotificationInput{
			Type:      models.NotificationProjectCancelled,
			Content:   fmt.Sprintf("Проект «%s» отменён заказчиком", project.Title),
			ProjectID: &project.ID,
		})
	}

	return cancelled, nil
}

// ReopenProject возвращает отменённый проект в открытые. Фрилансеры с
// сохранившимися ставками узнают об этом из уведомлений.
func (s *ProjectService) ReopenProject(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if project.ClientID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "у вас нет прав на возобновление проекта")
	}

	if !models.CanProjectTransition(project.Status, models.ProjectStatusOpen) {
		return nil, invalidProjectTransition(project.Status, models.ProjectStatusOpen)
	}

	reopened, err := s.repo.Reopen(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectStateChanged) {
			return nil, projectStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось возобновить проект")
	}

	if bids, err := s.bids.ListByProject(ctx, id); err == nil {
		for _, bid := range bids {
			if bid.Status != models.BidStatusPending {
				continue
			}
			_ = s.notifier.NotifyUser(ctx, bid.FreelancerID, NotificationInput{
				Type:      models.NotificationProjectReopened,
				Content:   fmt.Sprintf("Проект «%s» снова открыт для ставок", project.Title),
				ProjectID: &project.ID,
			})
		}
	}

	return reopened, nil
}

// DeleteProject удаляет открытый или отменённый проект владельца.
func (s *ProjectService) DeleteProject(ctx context.Context, principal models.Principal, id uuid.UUID) error {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return err
	}

	if project.ClientID != principal.ID {
		return apperror.New(apperror.ErrCodeForbidden, "у вас нет прав на удаление проекта")
	}

	if project.Status != models.ProjectStatusOpen && project.Status != models.ProjectStatusCancelled {
		return apperror.New(apperror.ErrCodePreconditionFailed, "удалить можно только открытый или отменённый проект")
	}

	if err := s.repo.Delete(ctx, id, principal.ID); err != nil {
		if errors.Is(err, repository.ErrProjectStateChanged) {
			return projectStateConflict()
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось удалить проект")
	}

	return nil
}

// CompleteProject отмечает работу выполненной от имени исполнителя.
// Живой escrow, ещё ожидающий старта, переводится в работу тем же действием:
// отметка о выполнении и есть начало работы по escrow.
func (s *ProjectService) CompleteProject(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if project.FreelancerID == nil || *project.FreelancerID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отметить выполнение может только исполнитель проекта")
	}

	if !models.CanProjectTransition(project.Status, models.ProjectStatusCompleted) {
		return nil, invalidProjectTransition(project.Status, models.ProjectStatusCompleted)
	}

	completed, err := s.repo.MarkCompleted(ctx, id, principal.ID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectStateChanged) {
			return nil, projectStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось завершить проект")
	}

	s.advancePendingEscrow(ctx, id)

	_ = s.notifier.NotifyUser(ctx, project.ClientID, NotificationInput{
		Type:      models.NotificationProjectCompleted,
		Content:   fmt.Sprintf("Исполнитель отметил проект «%s» выполненным", project.Title),
		ProjectID: &project.ID,
	})

	return completed, nil
}

// ReturnToWork возвращает выполненный проект в работу от имени исполнителя.
func (s *ProjectService) ReturnToWork(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if project.FreelancerID == nil || *project.FreelancerID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вернуть проект в работу может только исполнитель")
	}

	if !models.CanProjectTransition(project.Status, models.ProjectStatusInProgress) {
		return nil, invalidProjectTransition(project.Status, models.ProjectStatusInProgress)
	}

	reverted, err := s.repo.UnmarkCompleted(ctx, id, principal.ID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectStateChanged) {
			return nil, projectStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось вернуть проект в работу")
	}

	_ = s.notifier.NotifyUser(ctx, project.ClientID, NotificationInput{
		Type:      models.NotificationProjectReopened,
		Content:   fmt.Sprintf("Исполнитель вернул проект «%s» в работу", project.Title),
		ProjectID: &project.ID,
	})

	return reverted, nil
}

// RequestPayment отправляет исполнителю запрос принять оплату напрямую.
// Путь прямого расчёта несовместим с escrow: выбирается ровно один из них.
func (s *ProjectService) RequestPayment(ctx context.Context, principal models.Principal, id uuid.UUID) error {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return err
	}

	if project.ClientID != principal.ID {
		return apperror.New(apperror.ErrCodeForbidden, "запросить расчёт может только владелец проекта")
	}

	if project.Status != models.ProjectStatusCompleted || project.FreelancerID == nil {
		return apperror.New(apperror.ErrCodePreconditionFailed, "расчёт доступен только по выполненному проекту")
	}

	if _, err := s.escrows.GetLiveByProjectID(ctx, id); err == nil {
		return apperror.New(apperror.ErrCodeConflict, "расчёт по проекту ведётся через escrow")
	} else if !errors.Is(err, repository.ErrEscrowNotFound) {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить escrow")
	}

	return s.notifier.NotifyUser(ctx, *project.FreelancerID, NotificationInput{
		Type:      models.NotificationPaymentRequested,
		Content:   fmt.Sprintf("Заказчик предлагает принять оплату по проекту «%s»", project.Title),
		ProjectID: &project.ID,
		Action: &models.NotificationAction{
			Type:      models.NotificationActionAcceptPayment,
			ProjectID: &project.ID,
		},
	})
}

// AcceptPayment принимает прямую оплату и закрывает проект.
// Требует предшествующего запроса оплаты от заказчика.
func (s *ProjectService) AcceptPayment(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if project.FreelancerID == nil || *project.FreelancerID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "принять оплату может только исполнитель проекта")
	}

	if !models.CanProjectTransition(project.Status, models.ProjectStatusClosed) ||
		project.Status != models.ProjectStatusCompleted {
		return nil, invalidProjectTransition(project.Status, models.ProjectStatusClosed)
	}

	requested, err := s.notifier.HasPaymentRequest(ctx, id, principal.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить запрос оплаты")
	}
	if !requested {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "заказчик ещё не запросил расчёт")
	}

	if _, err := s.escrows.GetLiveByProjectID(ctx, id); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "расчёт по проекту ведётся через escrow")
	} else if !errors.Is(err, repository.ErrEscrowNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось проверить escrow")
	}

	closed, err := s.repo.CloseSettled(ctx, id, principal.ID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectStateChanged) {
			return nil, projectStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось закрыть проект")
	}

	_ = s.notifier.NotifyUser(ctx, project.ClientID, NotificationInput{
		Type:      models.NotificationPaymentAccepted,
		Content:   fmt.Sprintf("Исполнитель принял оплату, проект «%s» закрыт", project.Title),
		ProjectID: &project.ID,
	})

	return closed, nil
}

// advancePendingEscrow двигает живой escrow проекта из pending в in_progress.
// Провал не отменяет завершение проекта: escrow можно стартовать и отдельно.
func (s *ProjectService) advancePendingEscrow(ctx context.Context, projectID uuid.UUID) {
	escrow, err := s.escrows.GetLiveByProjectID(ctx, projectID)
	if err != nil {
		if !errors.Is(err, repository.ErrEscrowNotFound) {
			logger.Log.WithFields(map[string]interface{}{
				"project_id": projectID,
				"error":      err.Error(),
			}).Warn("project service: не удалось проверить escrow при завершении")
		}
		return
	}

	if escrow.Status != models.EscrowStatusPending {
		return
	}

	if _, err := s.escrows.Advance(ctx, escrow.ID, models.EscrowStatusPending, models.EscrowStatusInProgress, nil); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"project_id": projectID,
			"escrow_id":  escrow.ID,
			"error":      err.Error(),
		}).Warn("project service: не удалось перевести escrow в работу")
	}
}

func validateProjectInput(title, description string, budget float64, deadline *time.Time) error {
	if title == "" {
		return apperror.New(apperror.ErrCodeValidation, "заголовок проекта не может быть пустым")
	}
	if description == "" {
		return apperror.New(apperror.ErrCodeValidation, "описание проекта не может быть пустым")
	}
	if budget <= 0 {
		return apperror.New(apperror.ErrCodeValidation, "бюджет должен быть положительным")
	}
	if deadline != nil && deadline.Before(time.Now()) {
		return apperror.New(apperror.ErrCodeValidation, "дедлайн не может быть в прошлом")
	}
	return nil
}

func invalidProjectTransition(from, to string) error {
	return apperror.New(apperror.ErrCodeInvalidStateTransition,
		fmt.Sprintf("переход проекта из %s в %s недопустим", from, to))
}

func projectStateConflict() error {
	return apperror.New(apperror.ErrCodeConflict, "состояние проекта изменилось, повторите запрос")
}
