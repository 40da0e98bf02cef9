package entity

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	Name  string `json:"name"`
	Email string `json:"email"`

	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
