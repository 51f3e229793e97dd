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

// EscrowRepository описывает взаимодействие сервиса с хранилищем escrow.
type EscrowRepository interface {
	Create(ctx context.Context, escrow *models.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	GetLiveByProjectID(ctx context.Context, projectID uuid.UUID) (*models.Escrow, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Escrow, error)
	Advance(ctx context.Context, id uuid.UUID, from, to string, notes *string) (*models.Escrow, error)
	ReleaseAndCloseProject(ctx context.Context, id uuid.UUID, notes *string) (*models.Escrow, error)
}

// EscrowProjectReader описывает минимальный контракт чтения проектов.
type EscrowProjectReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// EscrowBidReader описывает минимальный контракт чтения принятой ставки.
type EscrowBidReader interface {
	GetAcceptedByProject(ctx context.Context, projectID uuid.UUID) (*models.Bid, error)
}

// EscrowNotifier описывает зависимость сервиса от журнала уведомлений.
type EscrowNotifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, in NotificationInput) error
	NotifyAdmins(ctx context.Context, in NotificationInput) error
}

// EscrowService ведёт учёт средств по принятым ставкам.
// Цепочка статусов движется строго вперёд, и у каждого ребра свой актор:
// исполнитель начинает работу, заказчик одобряет, админ релизит.
type EscrowService struct {
	repo     EscrowRepository
	projects EscrowProjectReader
	bids     EscrowBidReader
	notifier EscrowNotifier
}

// NewEscrowService создаёт сервис escrow.
func NewEscrowService(repo EscrowRepository, projects EscrowProjectReader, bids EscrowBidReader, notifier EscrowNotifier) *EscrowService {
	return &EscrowService{
		repo:     repo,
		projects: projects,
		bids:     bids,
		notifier: notifier,
	}
}

// Fund создаёт escrow по принятой ставке проекта. Сумма берётся из ставки
// и фиксируется навсегда. Доступно пока проект не закрыт и не отменён —
// в том числе по уже выполненному проекту. На проект допускается не более
// одного живого escrow; после отмены финансирование можно повторить.
func (s *EscrowService) Fund(ctx context.Context, principal models.Principal, projectID uuid.UUID, notes *string) (*models.Escrow, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.ClientID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "финансировать проект может только его владелец")
	}

	if project.Status == models.ProjectStatusClosed || project.Status == models.ProjectStatusCancelled {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "escrow нельзя создать по закрытому или отменённому проекту")
	}
	if project.FreelancerID == nil {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "по проекту не назначен исполнитель")
	}

	bid, err := s.bids.GetAcceptedByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.New(apperror.ErrCodePreconditionFailed, "по проекту нет принятой ставки")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить ставку")
	}

	escrow := &models.Escrow{
		ProjectID:    projectID,
		BidID:        bid.ID,
		ClientID:     project.ClientID,
		FreelancerID: bid.FreelancerID,
		Amount:       bid.Amount,
		Status:       models.EscrowStatusPending,
		Notes:        notes,
	}

	if err := s.repo.Create(ctx, escrow); err != nil {
		if errors.Is(err, repository.ErrDuplicateEscrow) {
			return nil, apperror.New(apperror.ErrCodeConflict, "по проекту уже есть действующий escrow")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать escrow")
	}

	_ = s.notifier.NotifyUser(ctx, escrow.FreelancerID, NotificationInput{
		Type:      models.NotificationEscrowFunded,
		Content:   fmt.Sprintf("Заказчик зарезервировал оплату по проекту «%s»", project.Title),
		ProjectID: &project.ID,
		EscrowID:  &escrow.ID,
	})
	_ = s.notifier.NotifyAdmins(ctx, NotificationInput{
		Type:      models.NotificationEscrowFunded,
		Content:   fmt.Sprintf("Создан escrow на %.2f по проекту «%s»", escrow.Amount, project.Title),
		ProjectID: &project.ID,
		EscrowID:  &escrow.ID,
	})

	return escrow, nil
}

// Get возвращает escrow его стороне или админу.
func (s *EscrowService) Get(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.getEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	if escrow.ClientID != principal.ID && escrow.FreelancerID != principal.ID && !principal.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "у вас нет доступа к этому escrow")
	}

	return escrow, nil
}

// GetByProject возвращает живой escrow проекта его стороне или админу.
func (s *EscrowService) GetByProject(ctx context.Context, principal models.Principal, projectID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetLiveByProjectID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить escrow")
	}

	if escrow.ClientID != principal.ID && escrow.FreelancerID != principal.ID && !principal.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "у вас нет доступа к этому escrow")
	}

	return escrow, nil
}

// ListMine возвращает escrow, где пользователь — одна из сторон.
func (s *EscrowService) ListMine(ctx context.Context, principal models.Principal, limit, offset int) ([]models.Escrow, error) {
	limit, offset = normalizePage(limit, offset)

	escrows, err := s.repo.ListByUser(ctx, principal.ID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить escrow")
	}
	return escrows, nil
}

// ListAll возвращает все escrow для админа.
func (s *EscrowService) ListAll(ctx context.Context, principal models.Principal, limit, offset int) ([]models.Escrow, error) {
	if !principal.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	limit, offset = normalizePage(limit, offset)

	escrows, err := s.repo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить escrow")
	}
	return escrows, nil
}

// StartWork переводит escrow в работу от имени исполнителя.
func (s *EscrowService) StartWork(ctx context.Context, principal models.Principal, id uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.getEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	if escrow.FreelancerID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "начать работу по escrow может только исполнитель")
	}

	advanced, err := s.advance(ctx, escrow, models.EscrowStatusPending, models.EscrowStatusInProgress, nil)
	if err != nil {
		return nil, err
	}

	_ = s.notifier.NotifyUser(ctx, escrow.ClientID, NotificationInput{
		Type:      models.NotificationEscrowInProgress,
		Content:   "Исполнитель приступил к работе по escrow",
		ProjectID: &escrow.ProjectID,
		EscrowID:  &escrow.ID,
	})

	return advanced, nil
}

// Approve одобряет выплату от имени заказчика: escrow готов к релизу.
func (s *EscrowService) Approve(ctx context.Context, principal models.Principal, id uuid.UUID, notes *string) (*models.Escrow, error) {
	escrow, err := s.getEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	if escrow.ClientID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "одобрить выплату может только заказчик")
	}

	advanced, err := s.advance(ctx, escrow, models.EscrowStatusInProgress, models.EscrowStatusReadyForRelease, notes)
	if err != nil {
		return nil, err
	}

	_ = s.notifier.NotifyUser(ctx, escrow.FreelancerID, NotificationInput{
		Type:      models.NotificationEscrowApproved,
		Content:   "Заказчик одобрил выплату, ожидается подтверждение администратора",
		ProjectID: &escrow.ProjectID,
		EscrowID:  &escrow.ID,
	})
	_ = s.notifier.NotifyAdmins(ctx, NotificationInput{
		Type:      models.NotificationEscrowApproved,
		Content:   fmt.Sprintf("Escrow на %.2f одобрен заказчиком и ждёт релиза", escrow.Amount),
		ProjectID: &escrow.ProjectID,
		EscrowID:  &escrow.ID,
	})

	return advanced, nil
}

// Release релизит средства от имени админа и закрывает проект —
// одной транзакцией.
func (s *EscrowService) Release(ctx context.Context, principal models.Principal, id uuid.UUID, notes *string) (*models.Escrow, error) {
	if !principal.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "релиз средств выполняет администратор")
	}

	escrow, err := s.getEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	if !models.CanEscrowTransition(escrow.Status, models.EscrowStatusReleased) {
		return nil, invalidEscrowTransition(escrow.Status, models.EscrowStatusReleased)
	}

	released, err := s.repo.ReleaseAndCloseProject(ctx, id, notes)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEscrowStateChanged):
			return nil, escrowStateConflict()
		case errors.Is(err, repository.ErrProjectStateChanged):
			return nil, projectStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось релизнуть escrow")
	}

	for _, userID := range []uuid.UUID{released.FreelancerID, released.ClientID} {
		_ = s.notifier.NotifyUser(ctx, userID, NotificationInput{
			Type:      models.NotificationEscrowReleased,
			Content:   fmt.Sprintf("Средства по escrow (%.2f) выплачены, проект закрыт", released.Amount),
			ProjectID: &released.ProjectID,
			EscrowID:  &released.ID,
		})
	}

	return released, nil
}

// Cancel отменяет escrow. Доступно сторонам сделки и админу из любого
// нерелизнутого статуса; после отмены проект можно финансировать заново.
func (s *EscrowService) Cancel(ctx context.Context, principal models.Principal, id uuid.UUID, notes *string) (*models.Escrow, error) {
	escrow, err := s.getEscrow(ctx, id)
	if err != nil {
		return nil, err
	}

	if escrow.ClientID != principal.ID && escrow.FreelancerID != principal.ID && !principal.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "у вас нет прав на отмену escrow")
	}

	cancelled, err := s.advance(ctx, escrow, escrow.Status, models.EscrowStatusCancelled, notes)
	if err != nil {
		return nil, err
	}

	for _, userID := range []uuid.UUID{escrow.ClientID, escrow.FreelancerID} {
		if userID == principal.ID {
			continue
		}
		_ = s.notifier.NotifyUser(ctx, userID, NotificationInput{
			Type:      models.NotificationEscrowCancelled,
			Content:   "Escrow по проекту отменён",
			ProjectID: &escrow.ProjectID,
			EscrowID:  &escrow.ID,
		})
	}
	_ = s.notifier.NotifyAdmins(ctx, NotificationInput{
		Type:      models.NotificationEscrowCancelled,
		Content:   fmt.Sprintf("Escrow на %.2f отменён", escrow.Amount),
		ProjectID: &escrow.ProjectID,
		EscrowID:  &escrow.ID,
	})

	return cancelled, nil
}

// advance валидирует переход по снимку и выполняет compare-and-swap.
func (s *EscrowService) advance(ctx context.Context, escrow *models.Escrow, from, to string, notes *string) (*models.Escrow, error) {
	if escrow.Status != from || !models.CanEscrowTransition(from, to) {
		return nil, invalidEscrowTransition(escrow.Status, to)
	}

	advanced, err := s.repo.Advance(ctx, escrow.ID, from, to, notes)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowStateChanged) {
			return nil, escrowStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось изменить escrow")
	}

	return advanced, nil
}

func (s *EscrowService) getEscrow(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить escrow")
	}
	return escrow, nil
}

func (s *EscrowService) getProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить проект")
	}
	return project, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func invalidEscrowTransition(from, to string) error {
	return apperror.New(apperror.ErrCodeInvalidStateTransition,
		fmt.Sprintf("переход escrow из %s в %s недопустим", from, to))
}

func escrowStateConflict() error {
	return apperror.New(apperror.ErrCodeConflict, "состояние escrow изменилось, повторите запрос")
}
