// Package memory is an in-process database.Store used by tests and by
// DB_DRIVER=memory for local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/pkg/models"
)

// Store keeps users and friend requests in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	users   map[string]models.User
	byEmail map[string]string

	requests map[string]models.FriendRequest
	byPair   map[string]string

	now func() time.Time
}

var _ database.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]models.User),
		byEmail:  make(map[string]string),
		requests: make(map[string]models.FriendRequest),
		byPair:   make(map[string]string),
		now:      time.Now,
	}
}

func (s *Store) Users() database.Users                   { return (*users)(s) }
func (s *Store) FriendRequests() database.FriendRequests { return (*friendRequests)(s) }
func (s *Store) Ping(ctx context.Context) error          { return ctx.Err() }
func (s *Store) Close(context.Context) error             { return nil }

type users Store

func (s *users) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, taken := s.byEmail[email]; taken {
		return database.ErrDuplicate
	}
	if _, taken := s.users[u.ID]; taken {
		return database.ErrDuplicate
	}
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	s.byEmail[email] = u.ID
	return nil
}

func (s *users) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &u, nil
}

func (s *users) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, database.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *users) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *users) CompleteOnboarding(ctx context.Context, id string, p models.Profile) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	u.Apply(p)
	u.IsOnboarded = true
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u
	return &u, nil
}

func (s *users) ListOnboarded(ctx context.Context, exclude []string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []models.User
	for id, u := range s.users {
		if !u.IsOnboarded || skip[id] {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type friendRequests Store

func (s *friendRequests) CreateFriendRequest(ctx context.Context, fr *models.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[fr.SenderID]; !ok {
		return database.ErrNotFound
	}
	if _, ok := s.users[fr.RecipientID]; !ok {
		return database.ErrNotFound
	}
	key := models.PairKey(fr.SenderID, fr.RecipientID)
	if _, exists := s.byPair[key]; exists {
		return database.ErrDuplicate
	}
	now := s.now().UTC()
	fr.CreatedAt, fr.UpdatedAt = now, now
	s.requests[fr.ID] = *fr
	s.byPair[key] = fr.ID
	return nil
}

func (s *friendRequests) GetFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fr, ok := s.requests[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &fr, nil
}

func (s *friendRequests) FindBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[models.PairKey(a, b)]
	if !ok {
		return nil, database.ErrNotFound
	}
	fr := s.requests[id]
	return &fr, nil
}

func (s *friendRequests) AcceptFriendRequest(ctx context.Context, id string) (*models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fr, ok := s.requests[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if fr.Status != models.FriendRequestPending {
		return nil, database.ErrPrecondition
	}
	fr.Status = models.FriendRequestAccepted
	fr.UpdatedAt = s.now().UTC()
	s.requests[id] = fr
	return &fr, nil
}

func (s *friendRequests) ListFriendRequests(ctx context.Context, f database.FriendRequestFilter) ([]models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FriendRequest
	for _, fr := range s.requests {
		if f.Match(fr) {
			out = append(out, fr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
