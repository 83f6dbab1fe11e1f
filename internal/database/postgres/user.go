package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/pkg/models"
)

type users struct {
	pool *pgxpool.Pool
}

const userColumns = `id, email, password, full_name, bio, native_language, learning_language,
	       profile_pic, location, is_onboarded, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.FullName, &u.Bio,
		&u.NativeLanguage, &u.LearningLanguage,
		&u.ProfilePic, &u.Location, &u.IsOnboarded,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanUsers(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *users) CreateUser(ctx context.Context, u *models.User) error {
	q := `
	INSERT INTO users (id, email, password, full_name, bio, native_language, learning_language,
	                   profile_pic, location, is_onboarded)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at
	`
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			u.ID, strings.ToLower(u.Email), u.Password, u.FullName, u.Bio,
			u.NativeLanguage, u.LearningLanguage, u.ProfilePic, u.Location, u.IsOnboarded,
		).Scan(&u.CreatedAt, &u.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", translate(err))
	}
	return nil
}

func (r *users) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *users) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, q, strings.ToLower(email)))
}

func (r *users) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func (r *users) CompleteOnboarding(ctx context.Context, id string, p models.Profile) (*models.User, error) {
	q := `
	UPDATE users
	SET full_name=$2, bio=$3, native_language=$4, learning_language=$5,
	    profile_pic=COALESCE(NULLIF($6, ''), profile_pic), location=$7,
	    is_onboarded=TRUE, updated_at=NOW()
	WHERE id=$1
	RETURNING ` + userColumns
	var out *models.User
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, q,
			id, p.FullName, p.Bio, p.NativeLanguage, p.LearningLanguage, p.ProfilePic, p.Location,
		))
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *users) ListOnboarded(ctx context.Context, exclude []string) ([]models.User, error) {
	if exclude == nil {
		// NULL would make the NOT ANY predicate unknown and drop every row
		exclude = []string{}
	}
	q := `
	SELECT ` + userColumns + `
	FROM users
	WHERE is_onboarded AND NOT (id = ANY($1))
	ORDER BY created_at DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, q, exclude)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}
