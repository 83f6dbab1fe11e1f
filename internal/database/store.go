//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks

// Package database defines the storage contract shared by the mongo, postgres and
// in-memory drivers.
package database

import (
	"context"
	"errors"

	"github.com/jason-s-yu/streamify/pkg/models"
)

var (
	// ErrNotFound is returned when the addressed row/document does not exist.
	ErrNotFound = errors.New("database: not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write
	// (email already taken, a request already exists for the user pair).
	ErrDuplicate = errors.New("database: duplicate")
	// ErrPrecondition is returned when a conditional update matched the row but
	// not its expected state (accepting a request that is no longer pending).
	ErrPrecondition = errors.New("database: precondition failed")
)

// Store is the root data access interface.
type Store interface {
	Users() Users
	FriendRequests() FriendRequests

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Users persists accounts and profiles.
type Users interface {
	// CreateUser inserts u. The caller assigns u.ID. ErrDuplicate on a taken email.
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUsersByIDs returns the users that exist among ids, in no particular order.
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	// CompleteOnboarding writes the profile and sets IsOnboarded.
	CompleteOnboarding(ctx context.Context, id string, p models.Profile) (*models.User, error)
	// ListOnboarded returns onboarded users whose id is not in exclude, newest first.
	ListOnboarded(ctx context.Context, exclude []string) ([]models.User, error)
}

// FriendRequests persists the friend-request graph. Implementations enforce at
// most one request per unordered user pair.
type FriendRequests interface {
	// CreateFriendRequest inserts fr. ErrDuplicate if any request already exists
	// for the pair, in either direction.
	CreateFriendRequest(ctx context.Context, fr *models.FriendRequest) error
	GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error)
	// FindBetween returns the request for the unordered pair {a, b}.
	FindBetween(ctx context.Context, a, b string) (*models.FriendRequest, error)
	// AcceptFriendRequest moves a pending request to accepted.
	// ErrNotFound if id is unknown, ErrPrecondition if it is not pending.
	AcceptFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error)
	ListFriendRequests(ctx context.Context, f FriendRequestFilter) ([]models.FriendRequest, error)
}

// FriendRequestFilter selects requests. Empty fields do not constrain.
type FriendRequestFilter struct {
	SenderID    string
	RecipientID string
	// Participant matches either side.
	Participant string
	Status      models.FriendRequestStatus
}

// Match reports whether fr satisfies the filter.
func (f FriendRequestFilter) Match(fr models.FriendRequest) bool {
	if f.SenderID != "" && fr.SenderID != f.SenderID {
		return false
	}
	if f.RecipientID != "" && fr.RecipientID != f.RecipientID {
		return false
	}
	if f.Participant != "" && !fr.Involves(f.Participant) {
		return false
	}
	if f.Status != "" && fr.Status != f.Status {
		return false
	}
	return true
}
