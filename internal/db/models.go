package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	PlanStatusPending  = "pending"
	PlanStatusComplete = "complete"
	PlanStatusFailed   = "failed"
)

type User struct {
	ID              uuid.UUID
	Email           string
	Name            pgtype.Text
	AvatarUrl       pgtype.Text
	ProviderSubject pgtype.Text
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type WorkoutPlan struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Profile   []byte
	Plan      []byte
	Status    string
	Error     pgtype.Text
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Subscription struct {
	UserID    uuid.UUID
	PlanType  string
	PriceID   string
	Status    string
	UpdatedAt time.Time
}
