// Package friends implements the friend-request graph: sending and accepting
// requests, listing them, and deriving friends and recommendations from them.
//
// A request is either pending or accepted; at most one exists per unordered
// pair of users and there is no transition out of accepted.
package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/internal/apperr"
	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/internal/notify"
	"github.com/jason-s-yu/streamify/pkg/models"
)

const (
	msgSelfRequest     = "You can't send friend request to yourself"
	msgAlreadyFriends  = "You are already friends with this user"
	msgRequestExists   = "A friend request already exists between you and this user"
	msgRecipientAbsent = "Recipient not found"
	msgRequestAbsent   = "Friend request not found"
	msgNotRecipient    = "You are not authorized to accept this request"
	msgAlreadyAccepted = "Friend request already accepted"
	msgInvalidUserID   = "Invalid user id"
	msgInvalidReqID    = "Invalid friend request id"
)

type Service struct {
	store  database.Store
	pub    notify.Publisher
	logger *logrus.Logger
}

// NewService returns a Service. pub may be nil, in which case no notifications
// are published.
func NewService(store database.Store, pub notify.Publisher, logger *logrus.Logger) *Service {
	return &Service{store: store, pub: pub, logger: logger}
}

// SendFriendRequest creates a pending request from senderID to recipientID.
func (s *Service) SendFriendRequest(ctx context.Context, senderID, recipientID string) (*models.FriendRequest, error) {
	if senderID == recipientID {
		return nil, apperr.New(apperr.Validation, msgSelfRequest)
	}
	if !database.ValidID(recipientID) {
		return nil, apperr.New(apperr.Validation, msgInvalidUserID)
	}

	recipient, err := s.store.Users().GetUserByID(ctx, recipientID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, msgRecipientAbsent)
	}
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}

	existing, err := s.store.FriendRequests().FindBetween(ctx, senderID, recipient.ID)
	switch {
	case err == nil && existing.Status == models.FriendRequestAccepted:
		return nil, apperr.New(apperr.Conflict, msgAlreadyFriends)
	case err == nil:
		return nil, apperr.New(apperr.Conflict, msgRequestExists)
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("look up existing request: %w", err)
	}

	fr := &models.FriendRequest{
		ID:          database.NewID(),
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Status:      models.FriendRequestPending,
	}
	err = s.store.FriendRequests().CreateFriendRequest(ctx, fr)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		// lost a race with a concurrent send for the same pair
		return nil, apperr.Wrap(apperr.Conflict, msgRequestExists, err)
	case errors.Is(err, database.ErrNotFound):
		return nil, apperr.Wrap(apperr.NotFound, msgRecipientAbsent, err)
	case err != nil:
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"request": fr.ID, "sender": senderID, "recipient": recipient.ID}).Info("friend request sent")
	s.notify(ctx, recipient.ID, notify.FriendRequestReceived, *fr, senderID)
	return fr, nil
}

// AcceptFriendRequest moves requestID to accepted on behalf of actingUserID,
// who must be its recipient.
func (s *Service) AcceptFriendRequest(ctx context.Context, requestID, actingUserID string) (*models.FriendRequest, error) {
	if !database.ValidID(requestID) {
		return nil, apperr.New(apperr.Validation, msgInvalidReqID)
	}
	fr, err := s.store.FriendRequests().GetFriendRequest(ctx, requestID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, msgRequestAbsent)
	}
	if err != nil {
		return nil, fmt.Errorf("load friend request: %w", err)
	}
	if fr.RecipientID != actingUserID {
		return nil, apperr.New(apperr.Forbidden, msgNotRecipient)
	}
	if fr.Status == models.FriendRequestAccepted {
		return nil, apperr.New(apperr.Conflict, msgAlreadyAccepted)
	}

	accepted, err := s.store.FriendRequests().AcceptFriendRequest(ctx, requestID)
	switch {
	case errors.Is(err, database.ErrPrecondition):
		return nil, apperr.Wrap(apperr.Conflict, msgAlreadyAccepted, err)
	case errors.Is(err, database.ErrNotFound):
		return nil, apperr.Wrap(apperr.NotFound, msgRequestAbsent, err)
	case err != nil:
		return nil, fmt.Errorf("accept friend request: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"request": accepted.ID, "sender": accepted.SenderID, "recipient": accepted.RecipientID}).Info("friend request accepted")
	s.notify(ctx, accepted.SenderID, notify.FriendRequestAccepted, *accepted, actingUserID)
	return accepted, nil
}

// GetFriendRequests returns the pending requests addressed to userID and the
// requests userID sent that have been accepted.
func (s *Service) GetFriendRequests(ctx context.Context, userID string) (*models.FriendRequestsResult, error) {
	incoming, err := s.listViews(ctx, database.FriendRequestFilter{
		RecipientID: userID,
		Status:      models.FriendRequestPending,
	})
	if err != nil {
		return nil, err
	}
	accepted, err := s.listViews(ctx, database.FriendRequestFilter{
		SenderID: userID,
		Status:   models.FriendRequestAccepted,
	})
	if err != nil {
		return nil, err
	}
	return &models.FriendRequestsResult{IncomingReqs: incoming, AcceptedReqs: accepted}, nil
}

// GetOutgoingFriendReqs returns userID's pending requests with recipients populated.
func (s *Service) GetOutgoingFriendReqs(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	return s.listViews(ctx, database.FriendRequestFilter{
		SenderID: userID,
		Status:   models.FriendRequestPending,
	})
}

// GetMyFriends returns the counterparts of userID's accepted requests. A
// non-empty query keeps friends whose name or languages contain it, ignoring case.
func (s *Service) GetMyFriends(ctx context.Context, userID, query string) ([]models.PublicUser, error) {
	reqs, err := s.store.FriendRequests().ListFriendRequests(ctx, database.FriendRequestFilter{
		Participant: userID,
		Status:      models.FriendRequestAccepted,
	})
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	ids := make([]string, 0, len(reqs))
	for _, fr := range reqs {
		ids = append(ids, fr.Counterpart(userID))
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	friends := make([]models.PublicUser, 0, len(ids))
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		if q != "" && !matches(u, q) {
			continue
		}
		friends = append(friends, u.Public())
	}
	return friends, nil
}

func matches(u models.User, q string) bool {
	for _, field := range []string{u.FullName, u.NativeLanguage, u.LearningLanguage} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// GetRecommendedUsers returns onboarded users that are not userID, not friends
// of userID, and share no pending request with userID.
func (s *Service) GetRecommendedUsers(ctx context.Context, userID string) ([]models.PublicUser, error) {
	reqs, err := s.store.FriendRequests().ListFriendRequests(ctx, database.FriendRequestFilter{Participant: userID})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	exclude := make([]string, 0, len(reqs)+1)
	exclude = append(exclude, userID)
	for _, fr := range reqs {
		exclude = append(exclude, fr.Counterpart(userID))
	}

	users, err := s.store.Users().ListOnboarded(ctx, exclude)
	if err != nil {
		return nil, fmt.Errorf("list onboarded users: %w", err)
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

// AreFriends reports whether a and b share an accepted request.
func (s *Service) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if a == b {
		return false, nil
	}
	fr, err := s.store.FriendRequests().FindBetween(ctx, a, b)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up friendship: %w", err)
	}
	return fr.Status == models.FriendRequestAccepted, nil
}

// listViews lists requests matching f and populates both sides' profiles.
func (s *Service) listViews(ctx context.Context, f database.FriendRequestFilter) ([]models.FriendRequestView, error) {
	reqs, err := s.store.FriendRequests().ListFriendRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}

	ids := make([]string, 0, 2*len(reqs))
	for _, fr := range reqs {
		ids = append(ids, fr.SenderID, fr.RecipientID)
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.FriendRequestView, 0, len(reqs))
	for _, fr := range reqs {
		v := models.FriendRequestView{FriendRequest: fr}
		if u, ok := users[fr.SenderID]; ok {
			p := u.Public()
			v.Sender = &p
		}
		if u, ok := users[fr.RecipientID]; ok {
			p := u.Public()
			v.Recipient = &p
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) usersByID(ctx context.Context, ids []string) (map[string]models.User, error) {
	if len(ids) == 0 {
		return map[string]models.User{}, nil
	}
	list, err := s.store.Users().GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	out := make(map[string]models.User, len(list))
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

// notify publishes best effort; a failed notification never fails the request.
func (s *Service) notify(ctx context.Context, to string, typ notify.EventType, fr models.FriendRequest, fromID string) {
	if s.pub == nil {
		return
	}
	payload := notify.FriendRequestPayload{Request: fr}
	if from, err := s.store.Users().GetUserByID(ctx, fromID); err == nil {
		p := from.Public()
		payload.From = &p
	}
	ev, err := notify.NewEvent(typ, payload)
	if err == nil {
		err = s.pub.Publish(ctx, to, ev)
	}
	if err != nil {
		s.logger.WithFields(logrus.Fields{"user": to, "type": typ}).Warnf("error publishing notification: %v", err)
	}
}
