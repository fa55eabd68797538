package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const upsertUserByEmail = `-- name: UpsertUserByEmail :one
INSERT INTO users (email, name, avatar_url, provider_subject)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE SET
    name             = COALESCE(EXCLUDED.name, users.name),
    avatar_url       = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
    provider_subject = COALESCE(EXCLUDED.provider_subject, users.provider_subject),
    updated_at       = now()
RETURNING id, email, name, avatar_url, provider_subject, created_at, updated_at
`

type UpsertUserByEmailParams struct {
	Email           string
	Name            pgtype.Text
	AvatarUrl       pgtype.Text
	ProviderSubject pgtype.Text
}

func (q *Queries) UpsertUserByEmail(ctx context.Context, arg UpsertUserByEmailParams) (User, error) {
	row := q.db.QueryRow(ctx, upsertUserByEmail,
		arg.Email,
		arg.Name,
		arg.AvatarUrl,
		arg.ProviderSubject,
	)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.AvatarUrl,
		&i.ProviderSubject,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUser = `-- name: GetUser :one
SELECT id, email, name, avatar_url, provider_subject, created_at, updated_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUser, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.AvatarUrl,
		&i.ProviderSubject,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, email, name, avatar_url, provider_subject, created_at, updated_at
FROM users
WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.Name,
		&i.AvatarUrl,
		&i.ProviderSubject,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
