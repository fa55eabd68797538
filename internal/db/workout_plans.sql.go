package db

import (
	"context"

	"github.com/google/uuid"
)

const createWorkoutPlan = `-- name: CreateWorkoutPlan :one
INSERT INTO workout_plans (user_id, profile, plan, status)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, profile, plan, status, error, created_at, updated_at
`

type CreateWorkoutPlanParams struct {
	UserID  uuid.UUID
	Profile []byte
	Plan    []byte
	Status  string
}

func (q *Queries) CreateWorkoutPlan(ctx context.Context, arg CreateWorkoutPlanParams) (WorkoutPlan, error) {
	row := q.db.QueryRow(ctx, createWorkoutPlan,
		arg.UserID,
		arg.Profile,
		arg.Plan,
		arg.Status,
	)
	var i WorkoutPlan
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Profile,
		&i.Plan,
		&i.Status,
		&i.Error,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getWorkoutPlan = `-- name: GetWorkoutPlan :one
SELECT id, user_id, profile, plan, status, error, created_at, updated_at
FROM workout_plans
WHERE id = $1
`

func (q *Queries) GetWorkoutPlan(ctx context.Context, id uuid.UUID) (WorkoutPlan, error) {
	row := q.db.QueryRow(ctx, getWorkoutPlan, id)
	var i WorkoutPlan
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Profile,
		&i.Plan,
		&i.Status,
		&i.Error,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listWorkoutPlansByUser = `-- name: ListWorkoutPlansByUser :many
SELECT id, user_id, profile, plan, status, error, created_at, updated_at
FROM workout_plans
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

type ListWorkoutPlansByUserParams struct {
	UserID uuid.UUID
	Limit  int32
}

func (q *Queries) ListWorkoutPlansByUser(ctx context.Context, arg ListWorkoutPlansByUserParams) ([]WorkoutPlan, error) {
	rows, err := q.db.Query(ctx, listWorkoutPlansByUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WorkoutPlan
	for rows.Next() {
		var i WorkoutPlan
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Profile,
			&i.Plan,
			&i.Status,
			&i.Error,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const completeWorkoutPlan = `-- name: CompleteWorkoutPlan :exec
UPDATE workout_plans
SET plan = $2, status = 'complete', error = NULL, updated_at = now()
WHERE id = $1
`

type CompleteWorkoutPlanParams struct {
	ID   uuid.UUID
	Plan []byte
}

func (q *Queries) CompleteWorkoutPlan(ctx context.Context, arg CompleteWorkoutPlanParams) error {
	_, err := q.db.Exec(ctx, completeWorkoutPlan, arg.ID, arg.Plan)
	return err
}

const failWorkoutPlan = `-- name: FailWorkoutPlan :exec
UPDATE workout_plans
SET status = 'failed', error = $2, updated_at = now()
WHERE id = $1
`

type FailWorkoutPlanParams struct {
	ID    uuid.UUID
	Error string
}

func (q *Queries) FailWorkoutPlan(ctx context.Context, arg FailWorkoutPlanParams) error {
	_, err := q.db.Exec(ctx, failWorkoutPlan, arg.ID, arg.Error)
	return err
}
