package models

// Роли пользователей
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// ProjectStatus константы статусов проектов
const (
	ProjectStatusOpen       = "open"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
	ProjectStatusClosed     = "closed"
	ProjectStatusCancelled  = "cancelled"
)

// BidStatus константы статусов ставок
const (
	BidStatusPending  = "pending"
	BidStatusAccepted = "accepted"
	BidStatusRejected = "rejected"
)

// EscrowStatus константы статусов escrow
const (
	EscrowStatusPending         = "pending"
	EscrowStatusInProgress      = "in_progress"
	EscrowStatusReadyForRelease = "ready_for_release"
	EscrowStatusReleased        = "released"
	EscrowStatusCancelled       = "cancelled"
)

// DisputeStatus константы статусов споров
const (
	DisputeStatusPending = "pending"
	DisputeStatusClosed  = "closed"
)

// ValidProjectStatuses список валидных статусов проектов
var ValidProjectStatuses = map[string]struct{}{
	ProjectStatusOpen:       {},
	ProjectStatusInProgress: {},
	ProjectStatusCompleted:  {},
	ProjectStatusClosed:     {},
	ProjectStatusCancelled:  {},
}

// ValidBidStatuses список валидных статусов ставок
var ValidBidStatuses = map[string]struct{}{
	BidStatusPending:  {},
	BidStatusAccepted: {},
	BidStatusRejected: {},
}

// projectTransitions задаёт разрешённые рёбра жизненного цикла проекта.
// Рёбра complete/unmark дают обратимую пару completed <-> in_progress,
// closed достижим из completed (расчёт) и in_progress (закрытие админом
// при релизе escrow).
var projectTransitions = map[string][]string{
	ProjectStatusOpen:       {ProjectStatusInProgress, ProjectStatusCancelled},
	ProjectStatusInProgress: {ProjectStatusCompleted, ProjectStatusCancelled, ProjectStatusClosed},
	ProjectStatusCompleted:  {ProjectStatusInProgress, ProjectStatusClosed},
	ProjectStatusCancelled:  {ProjectStatusOpen},
	ProjectStatusClosed:     {},
}

// escrowTransitions задаёт разрешённые рёбра движения средств.
// Монотонная цепочка вперёд, отмена доступна из любого нерелизнутого статуса.
var escrowTransitions = map[string][]string{
	EscrowStatusPending:         {EscrowStatusInProgress, EscrowStatusCancelled},
	EscrowStatusInProgress:      {EscrowStatusReadyForRelease, EscrowStatusCancelled},
	EscrowStatusReadyForRelease: {EscrowStatusReleased, EscrowStatusCancelled},
	EscrowStatusReleased:        {},
	EscrowStatusCancelled:       {},
}

// disputeTransitions: спор закрывается один раз и навсегда.
var disputeTransitions = map[string][]string{
	DisputeStatusPending: {DisputeStatusClosed},
	DisputeStatusClosed:  {},
}

// CanProjectTransition проверяет, разрешён ли переход статуса проекта.
func CanProjectTransition(from, to string) bool {
	return containsTransition(projectTransitions, from, to)
}

// CanEscrowTransition проверяет, разрешён ли переход статуса escrow.
func CanEscrowTransition(from, to string) bool {
	return containsTransition(escrowTransitions, from, to)
}

// CanDisputeTransition проверяет, разрешён ли переход статуса спора.
func CanDisputeTransition(from, to string) bool {
	return containsTransition(disputeTransitions, from, to)
}

func containsTransition(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}
