// Package storage is the professionals catalog repository.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/serenio-health/serenio/libs/db"
)

var ErrNotFound = errors.New("professional not found")

type Professional struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Specialization string  `json:"specialization"`
	Rating         float64 `json:"rating"`
	Reviews        int     `json:"reviews"`
	Experience     string  `json:"experience"`
	Bio            string  `json:"bio"`
	ImageURL       string  `json:"imageUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

const professionalColumns = `id, name, specialization, rating, reviews, experience, bio, image_url, created_at, updated_at`

func scanProfessional(row pgx.Row) (Professional, error) {
	var p Professional
	err := row.Scan(&p.ID, &p.Name, &p.Specialization, &p.Rating, &p.Reviews, &p.Experience, &p.Bio, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Professional{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) List(ctx context.Context, specialization string) ([]Professional, error) {
	query := `SELECT ` + professionalColumns + ` FROM professionals`
	args := []any{}
	if specialization != "" {
		query += ` WHERE specialization ILIKE $1`
		args = append(args, specialization)
	}
	query += ` ORDER BY rating DESC, reviews DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Professional, 0)
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (Professional, error) {
	return scanProfessional(r.pool.QueryRow(ctx,
		`SELECT `+professionalColumns+` FROM professionals WHERE id = $1`, id))
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM professionals WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

func (r *Repository) Create(ctx context.Context, p Professional) (Professional, error) {
	return scanProfessional(r.pool.QueryRow(ctx, `
		INSERT INTO professionals (id, name, specialization, rating, reviews, experience, bio, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+professionalColumns,
		p.ID, p.Name, p.Specialization, p.Rating, p.Reviews, p.Experience, p.Bio, p.ImageURL))
}
