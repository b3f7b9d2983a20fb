package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Customer, Staff and Service are owned by other services. This module only
// reads them to validate references and to size appointments.

type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID    uuid.UUID `bun:"id,pk,type:uuid"`
	Name  string    `bun:"name,notnull"`
	Email string    `bun:"email"`
	Phone string    `bun:"phone"`
}

type Staff struct {
	bun.BaseModel `bun:"table:staff"`

	ID   uuid.UUID `bun:"id,pk,type:uuid"`
	Name string    `bun:"name,notnull"`
}

type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	Name            string    `bun:"name,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
