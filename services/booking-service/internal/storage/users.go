package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/serenio-health/serenio/libs/db"
)

// User is the local projection of an account, maintained from the
// auth.user.created.v1 stream so booking events can carry recipient details
// without a synchronous call to the auth service.
type User struct {
	ID    string
	Email string
	Name  string
}

type UserProjection struct {
	pool *db.Pool
}

func NewUserProjection(pool *db.Pool) *UserProjection {
	return &UserProjection{pool: pool}
}

func (p *UserProjection) Upsert(ctx context.Context, u User) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO booking_users (id, email, name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name`,
		u.ID, u.Email, u.Name,
	)
	return err
}

func (p *UserProjection) Get(ctx context.Context, id string) (User, bool, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT id::text, email, name FROM booking_users WHERE id::text = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}
