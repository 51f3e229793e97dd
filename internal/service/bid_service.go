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

// BidRepository описывает взаимодействие сервиса с хранилищем ставок.
type BidRepository interface {
	Create(ctx context.Context, bid *models.Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Bid, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]models.Bid, error)
	Update(ctx context.Context, bid *models.Bid) error
	Accept(ctx context.Context, bidID, projectID, freelancerID uuid.UUID) error
	CancelPending(ctx context.Context, bidID, freelancerID uuid.UUID) error
	CancelAccepted(ctx context.Context, bidID, projectID, freelancerID uuid.UUID) error
}

// BidProjectReader описывает минимальный контракт чтения проектов.
type BidProjectReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// BidNotifier описывает зависимость сервиса от журнала уведомлений.
type BidNotifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, in NotificationInput) error
}

// BidService содержит бизнес-логику торгов по проектам.
type BidService struct {
	repo     BidRepository
	projects BidProjectReader
	notifier BidNotifier
}

// NewBidService создаёт сервис ставок.
func NewBidService(repo BidRepository, projects BidProjectReader, notifier BidNotifier) *BidService {
	return &BidService{
		repo:     repo,
		projects: projects,
		notifier: notifier,
	}
}

// BidInput описывает входные данные ставки.
type BidInput struct {
	ProjectID uuid.UUID
	Amount    float64
	Timeline  string
	Proposal  string
}

// CreateBid размещает ставку фрилансера на открытый проект.
func (s *BidService) CreateBid(ctx context.Context, principal models.Principal, in BidInput) (*models.Bid, error) {
	if !principal.IsFreelancer() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "ставки размещает только фрилансер")
	}

	project, err := s.getProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	if project.ClientID == principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя ставить на собственный проект")
	}

	if project.Status != models.ProjectStatusOpen {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "ставки принимаются только на открытый проект")
	}

	if err := validateBidInput(in, project.Budget); err != nil {
		return nil, err
	}

	bid := &models.Bid{
		ProjectID:    in.ProjectID,
		FreelancerID: principal.ID,
		Amount:       in.Amount,
		Timeline:     in.Timeline,
		Proposal:     in.Proposal,
		Status:       models.BidStatusPending,
	}

	if err := s.repo.Create(ctx, bid); err != nil {
		if errors.Is(err, repository.ErrDuplicateBid) {
			return nil, apperror.New(apperror.ErrCodeConflict, "вы уже сделали ставку на этот проект")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать ставку")
	}

	return bid, nil
}

// UpdateBid изменяет условия pending ставки её владельца.
func (s *BidService) UpdateBid(ctx context.Context, principal models.Principal, bidID uuid.UUID, in BidInput) (*models.Bid, error) {
	bid, err := s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}

	if bid.FreelancerID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "у вас нет прав на изменение ставки")
	}

	if bid.Status != models.BidStatusPending {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "изменить можно только ожидающую ставку")
	}

	project, err := s.getProject(ctx, bid.ProjectID)
	if err != nil {
		return nil, err
	}

	if err := validateBidInput(in, project.Budget); err != nil {
		return nil, err
	}

	bid.Amount = in.Amount
	bid.Timeline = in.Timeline
	bid.Proposal = in.Proposal

	if err := s.repo.Update(ctx, bid); err != nil {
		if errors.Is(err, repository.ErrBidStateChanged) {
			return nil, bidStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось обновить ставку")
	}

	return bid, nil
}

// AcceptBid принимает ставку от имени владельца проекта: ставка становится
// принятой, остальные отклоняются, проект уходит в работу с назначенным
// исполнителем — всё одной транзакцией.
func (s *BidService) AcceptBid(ctx context.Context, principal models.Principal, bidID uuid.UUID) (*models.Bid, error) {
	bid, err := s.getBid(ctx, bidID)
	if err != nil {
		return nil, err
	}

	project, err := s.getProject(ctx, bid.ProjectID)
	if err != nil {
		return nil, err
	}

	if project.ClientID != principal.ID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "принять ставку может только владелец проекта")
	}

	if project.Status != models.ProjectStatusOpen {
		return nil, invalidProjectTransition(project.Status, models.ProjectStatusInProgress)
	}

	if bid.Status != models.BidStatusPending {
		return nil, apperror.New(apperror.ErrCodePreconditionFailed, "принять можно только ожидающую ставку")
	}

	if err := s.repo.Accept(ctx, bidID, bid.ProjectID, bid.FreelancerID); err != nil {
		switch {
		case errors.Is(err, repository.ErrBidStateChanged):
			return nil, bidStateConflict()
		case errors.Is(err, repository.ErrProjectStateChanged):
			return nil, projectStateConflict()
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось принять ставку")
	}

	_ = s.notifier.NotifyUser(ctx, bid.FreelancerID, NotificationInput{
		Type:      models.NotificationBidAccepted,
		Content:   fmt.Sprintf("Ваша ставка на проект «%s» принята", project.Title),
		ProjectID: &project.ID,
		BidID:     &bid.ID,
	})

	return s.getBid(ctx, bidID)
}

// CancelBid отзывает ставку владельца. Отзыв принятой ставки возвращает
// проект в открытые, а отклонённые ставки — в ожидающие; разрешён только
// пока работа не отмечена выполненной.
func (s *BidService) CancelBid(ctx context.Context, principal models.Principal, bidID uuid.UUID) error {
	bid, err := s.getBid(ctx, bidID)
	if err != nil {
		return err
	}

	if bid.FreelancerID != principal.ID {
		return apperror.New(apperror.ErrCodeForbidden, "у вас нет прав на отзыв ставки")
	}

	switch bid.Status {
	case models.BidStatusPending:
		if err := s.repo.CancelPending(ctx, bidID, principal.ID); err != nil {
			if errors.Is(err, repository.ErrBidStateChanged) {
				return bidStateConflict()
			}
			return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось отозвать ставку")
		}
		return nil

	case models.BidStatusAccepted:
		project, err := s.getProject(ctx, bid.ProjectID)
		if err != nil {
			return err
		}

		if project.Status != models.ProjectStatusInProgress {
			return apperror.New(apperror.ErrCodePreconditionFailed, "принятую ставку можно отозвать только пока проект в работе")
		}

		if err := s.repo.CancelAccepted(ctx, bidID, bid.ProjectID, principal.ID); err != nil {
			switch {
			case errors.Is(err, repository.ErrBidStateChanged):
				return bidStateConflict()
			case errors.Is(err, repository.ErrProjectStateChanged):
				return projectStateConflict()
			}
			return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось отозвать ставку")
		}

		_ = s.notifier.NotifyUser(ctx, project.ClientID, NotificationInput{
			Type:      models.NotificationBidCancelled,
			Content:   fmt.Sprintf("Исполнитель отозвал принятую ставку, проект «%s» снова открыт", project.Title),
			ProjectID: &project.ID,
		})

		return nil

	default:
		return apperror.New(apperror.ErrCodePreconditionFailed, "отклонённую ставку нельзя отозвать")
	}
}

// ListProjectBids возвращает ставки проекта его владельцу или админу.
func (s *BidService) ListProjectBids(ctx context.Context, principal models.Principal, projectID uuid.UUID) ([]models.Bid, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.ClientID != principal.ID && !principal.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "ставки видит только владелец проекта")
	}

	bids, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить ставки")
	}
	return bids, nil
}

// ListMyBids возвращает ставки фрилансера.
func (s *BidService) ListMyBids(ctx context.Context, principal models.Principal) ([]models.Bid, error) {
	bids, err := s.repo.ListByFreelancer(ctx, principal.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить ставки")
	}
	return bids, nil
}

func (s *BidService) getBid(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	bid, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.ErrBidNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить ставку")
	}
	return bid, nil
}

func (s *BidService) getProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, apperror.ErrProjectNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось загрузить проект")
	}
	return project, nil
}

func validateBidInput(in BidInput, budget float64) error {
	if in.Amount <= 0 {
		return apperror.New(apperror.ErrCodeValidation, "сумма ставки должна быть положительной")
	}
	if in.Amount > budget {
		return apperror.New(apperror.ErrCodeValidation, "сумма ставки не может превышать бюджет проекта")
	}
	if in.Proposal == "" {
		return apperror.New(apperror.ErrCodeValidation, "сопроводительное предложение не может быть пустым")
	}
	return nil
}

func bidStateConflict() error {
	return apperror.New(apperror.ErrCodeConflict, "состояние ставки изменилось, повторите запрос")
}
