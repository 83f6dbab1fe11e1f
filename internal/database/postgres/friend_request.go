package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/pkg/models"
)

type friendRequests struct {
	pool *pgxpool.Pool
}

const friendRequestColumns = `id, sender_id, recipient_id, status, created_at, updated_at`

func scanFriendRequest(row pgx.Row) (*models.FriendRequest, error) {
	var fr models.FriendRequest
	err := row.Scan(&fr.ID, &fr.SenderID, &fr.RecipientID, &fr.Status, &fr.CreatedAt, &fr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

// CreateFriendRequest relies on friend_requests_pair_idx to reject a second
// request for the same pair, so two racing sends cannot both succeed.
func (r *friendRequests) CreateFriendRequest(ctx context.Context, fr *models.FriendRequest) error {
	q := `
	INSERT INTO friend_requests (id, sender_id, recipient_id, status)
	VALUES ($1, $2, $3, $4)
	RETURNING created_at, updated_at
	`
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q, fr.ID, fr.SenderID, fr.RecipientID, fr.Status).
			Scan(&fr.CreatedAt, &fr.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert friend request: %w", translate(err))
	}
	return nil
}

func (r *friendRequests) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	q := `SELECT ` + friendRequestColumns + ` FROM friend_requests WHERE id=$1`
	return scanFriendRequest(r.pool.QueryRow(ctx, q, id))
}

func (r *friendRequests) FindBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	q := `
	SELECT ` + friendRequestColumns + `
	FROM friend_requests
	WHERE LEAST(sender_id, recipient_id) = LEAST($1::text, $2::text)
	  AND GREATEST(sender_id, recipient_id) = GREATEST($1::text, $2::text)
	`
	return scanFriendRequest(r.pool.QueryRow(ctx, q, a, b))
}

// AcceptFriendRequest only flips rows that are still pending.
func (r *friendRequests) AcceptFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	q := `
	UPDATE friend_requests
	SET status='accepted', updated_at=NOW()
	WHERE id=$1 AND status='pending'
	RETURNING ` + friendRequestColumns
	var out *models.FriendRequest
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		fr, err := scanFriendRequest(tx.QueryRow(ctx, q, id))
		if errors.Is(err, database.ErrNotFound) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM friend_requests WHERE id=$1)`, id).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return database.ErrPrecondition
			}
			return database.ErrNotFound
		}
		out = fr
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *friendRequests) ListFriendRequests(ctx context.Context, f database.FriendRequestFilter) ([]models.FriendRequest, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.SenderID != "" {
		where = append(where, "sender_id = "+arg(f.SenderID))
	}
	if f.RecipientID != "" {
		where = append(where, "recipient_id = "+arg(f.RecipientID))
	}
	if f.Participant != "" {
		p := arg(f.Participant)
		where = append(where, "(sender_id = "+p+" OR recipient_id = "+p+")")
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}

	q := `SELECT ` + friendRequestColumns + ` FROM friend_requests`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FriendRequest
	for rows.Next() {
		fr, err := scanFriendRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fr)
	}
	return out, rows.Err()
}
