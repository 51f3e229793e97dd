package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает сущность пользователя платформы.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Principal представляет аутентифицированного пользователя в рамках запроса.
// Ядро доверяет этим данным полностью: их поставляет auth middleware.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

// IsClient сообщает, выступает ли пользователь в роли клиента.
func (p Principal) IsClient() bool { return p.Role == RoleClient }

// IsFreelancer сообщает, выступает ли пользователь в роли фрилансера.
func (p Principal) IsFreelancer() bool { return p.Role == RoleFreelancer }

// IsAdmin сообщает, является ли пользователь администратором.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Review описывает отзыв пользователя о другом пользователе после закрытия проекта.
type Review struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProjectID  uuid.UUID `db:"project_id" json:"project_id"`
	ReviewerID uuid.UUID `db:"reviewer_id" json:"reviewer_id"`
	ReviewedID uuid.UUID `db:"reviewed_id" json:"reviewed_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
