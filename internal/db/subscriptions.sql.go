package db

import (
	"context"

	"github.com/google/uuid"
)

const upsertSubscription = `-- name: UpsertSubscription :one
INSERT INTO subscriptions (user_id, plan_type, price_id, status)
VALUES ($1, $2, $3, 'pending')
ON CONFLICT (user_id) DO UPDATE SET
    plan_type  = EXCLUDED.plan_type,
    price_id   = EXCLUDED.price_id,
    status     = 'pending',
    updated_at = now()
RETURNING user_id, plan_type, price_id, status, updated_at
`

type UpsertSubscriptionParams struct {
	UserID   uuid.UUID
	PlanType string
	PriceID  string
}

func (q *Queries) UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, upsertSubscription, arg.UserID, arg.PlanType, arg.PriceID)
	var i Subscription
	err := row.Scan(
		&i.UserID,
		&i.PlanType,
		&i.PriceID,
		&i.Status,
		&i.UpdatedAt,
	)
	return i, err
}

const getSubscriptionByUser = `-- name: GetSubscriptionByUser :one
SELECT user_id, plan_type, price_id, status, updated_at
FROM subscriptions
WHERE user_id = $1
`

func (q *Queries) GetSubscriptionByUser(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	row := q.db.QueryRow(ctx, getSubscriptionByUser, userID)
	var i Subscription
	err := row.Scan(
		&i.UserID,
		&i.PlanType,
		&i.PriceID,
		&i.Status,
		&i.UpdatedAt,
	)
	return i, err
}
