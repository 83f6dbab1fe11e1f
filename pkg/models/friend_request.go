package models

import "time"

// FriendRequestStatus is 'pending' or 'accepted'. There is no way back from accepted.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
)

// FriendRequest is a directed proposal from Sender to Recipient.
type FriendRequest struct {
	ID          string              `json:"id"`
	SenderID    string              `json:"senderId"`
	RecipientID string              `json:"recipientId"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// Involves reports whether userID is either side of the request.
func (fr FriendRequest) Involves(userID string) bool {
	return fr.SenderID == userID || fr.RecipientID == userID
}

// Counterpart returns the other side of the request from userID's point of view.
func (fr FriendRequest) Counterpart(userID string) string {
	if fr.SenderID == userID {
		return fr.RecipientID
	}
	return fr.SenderID
}

// PairKey is the canonical key of the unordered {a, b} pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// FriendRequestView is a request with the counterpart profile populated.
type FriendRequestView struct {
	FriendRequest
	Sender    *PublicUser `json:"sender,omitempty"`
	Recipient *PublicUser `json:"recipient,omitempty"`
}

// FriendRequestsResult is the payload of the friend-requests listing.
type FriendRequestsResult struct {
	IncomingReqs []FriendRequestView `json:"incomingReqs"`
	AcceptedReqs []FriendRequestView `json:"acceptedReqs"`
}
