package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute описывает двусторонний спор, арбитром которого выступает админ.
// Статус монотонный: pending -> closed; после закрытия меняется только
// флаг прочтения админом.
type Dispute struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ProjectID     uuid.UUID  `db:"project_id" json:"project_id"`
	RaisedByID    uuid.UUID  `db:"raised_by_id" json:"raised_by_id"`
	RaisedByRole  string     `db:"raised_by_role" json:"raised_by_role"`
	AgainstID     uuid.UUID  `db:"against_id" json:"against_id"`
	AgainstRole   string     `db:"against_role" json:"against_role"`
	Description   string     `db:"description" json:"description"`
	Status        string     `db:"status" json:"status"`
	IsReadByAdmin bool       `db:"is_read_by_admin" json:"is_read_by_admin"`
	ClosedBy      *uuid.UUID `db:"closed_by" json:"closed_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	ClosedAt      *time.Time `db:"closed_at" json:"closed_at,omitempty"`
}
