package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lib/pq"
)

// Project описывает проект, размещённый клиентом.
// Инвариант: FreelancerID заполнен тогда и только тогда, когда статус
// in_progress, completed или closed; у open и cancelled проекта исполнителя нет.
type Project struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	ClientID       uuid.UUID      `db:"client_id" json:"client_id"`
	FreelancerID   *uuid.UUID     `db:"freelancer_id" json:"freelancer_id,omitempty"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Budget         float64        `db:"budget" json:"budget"`
	RequiredSkills pq.StringArray `db:"required_skills" json:"required_skills"`
	Status         string         `db:"status" json:"status"`
	DeadlineAt     *time.Time     `db:"deadline_at" json:"deadline_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	BidsCount      *int           `db:"bids_count" json:"bids_count,omitempty"`
}

// Bid представляет ставку фрилансера на проект.
// Инвариант: не более одной ставки на пару (проект, фрилансер);
// не более одной принятой ставки на проект.
type Bid struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ProjectID    uuid.UUID `db:"project_id" json:"project_id"`
	FreelancerID uuid.UUID `db:"freelancer_id" json:"freelancer_id"`
	Amount       float64   `db:"amount" json:"amount"`
	Timeline     string    `db:"timeline" json:"timeline"`
	Proposal     string    `db:"proposal" json:"proposal"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
