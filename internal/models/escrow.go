package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow представляет защищённую сделку по принятой ставке.
// Сумма фиксируется при создании и никогда не меняется.
type Escrow struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ProjectID        uuid.UUID  `db:"project_id" json:"project_id"`
	BidID            uuid.UUID  `db:"bid_id" json:"bid_id"`
	ClientID         uuid.UUID  `db:"client_id" json:"client_id"`
	FreelancerID     uuid.UUID  `db:"freelancer_id" json:"freelancer_id"`
	Amount           float64    `db:"amount" json:"amount"`
	Status           string     `db:"status" json:"status"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	ClientApprovedAt *time.Time `db:"client_approved_at" json:"client_approved_at,omitempty"`
	AdminReleasedAt  *time.Time `db:"admin_released_at" json:"admin_released_at,omitempty"`
}
