// Package channel derives hosted-chat channel identities for a pair of friends.
// Both sides compute the same id without coordination.
package channel

import (
	"sort"
	"strings"
)

// Type is the hosted chat channel type used for one-to-one conversations.
const Type = "messaging"

// MaxIDLength is the hosted service's limit on channel ids.
const MaxIDLength = 64

const separator = "-"

// Descriptor is everything a client needs to open the conversation with a friend.
type Descriptor struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Members []string `json:"members"`
	CallURL string   `json:"callUrl"`
}

// ID returns the members sorted lexicographically and joined with "-".
func ID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, separator)
}

// Members splits a channel id back into its two member ids. Member ids must not
// contain the separator, which holds for ULIDs.
func Members(id string) (string, string, bool) {
	a, b, ok := strings.Cut(id, separator)
	if !ok || a == "" || b == "" || strings.Contains(b, separator) {
		return "", "", false
	}
	return a, b, true
}

// CallURL is the frontend route for the video call bound to channelID.
func CallURL(frontendOrigin, channelID string) string {
	return strings.TrimRight(frontendOrigin, "/") + "/call/" + channelID
}

// VideoCallMessage is the text posted into the channel when a call starts.
func VideoCallMessage(callURL string) string {
	return "I've started a video call. Join me here: " + callURL
}

// New builds the descriptor for the conversation between a and b.
func New(frontendOrigin, a, b string) Descriptor {
	id := ID(a, b)
	first, second, _ := Members(id)
	return Descriptor{
		Type:    Type,
		ID:      id,
		Members: []string{first, second},
		CallURL: CallURL(frontendOrigin, id),
	}
}
