package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы уведомлений
const (
	NotificationBidAccepted      = "bid_accepted"
	NotificationBidCancelled     = "bid_cancelled"
	NotificationProjectCancelled = "project_cancelled"
	NotificationProjectCompleted = "project_completed"
	NotificationProjectReopened  = "project_reopened"
	NotificationPaymentRequested = "payment_requested"
	NotificationPaymentAccepted  = "payment_accepted"
	NotificationEscrowFunded     = "escrow_funded"
	NotificationEscrowInProgress = "escrow_in_progress"
	NotificationEscrowApproved   = "escrow_approved"
	NotificationEscrowReleased   = "escrow_released"
	NotificationEscrowCancelled  = "escrow_cancelled"
	NotificationDisputeRaised    = "dispute_raised"
	NotificationDisputeClosed    = "dispute_closed"
)

// Типы действий, доступных получателю из уведомления
const (
	NotificationActionAcceptPayment = "accept_payment"
)

// NotificationAction описывает действие, которое получатель может выполнить
// прямо из уведомления (например, принять оплату по проекту).
type NotificationAction struct {
	Type      string     `json:"type"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	BidID     *uuid.UUID `json:"bid_id,omitempty"`
}

// Notification описывает адресованное событие платформы.
// Получатель — либо конкретный пользователь (UserID), либо роль
// администратора целиком (ForAdmin = true, UserID пуст).
// Флаг IsRead монотонный: false -> true и никогда обратно.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	ForAdmin  bool            `db:"for_admin" json:"for_admin"`
	Type      string          `db:"type" json:"type"`
	Content   string          `db:"content" json:"content"`
	ProjectID *uuid.UUID      `db:"project_id" json:"project_id,omitempty"`
	BidID     *uuid.UUID      `db:"bid_id" json:"bid_id,omitempty"`
	EscrowID  *uuid.UUID      `db:"escrow_id" json:"escrow_id,omitempty"`
	Action    json.RawMessage `db:"action" json:"action,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
