package database

import "github.com/oklog/ulid/v2"

// NewID returns a new ULID string. Two sorted ids joined by '-' stay within the
// 64 character channel id limit of the hosted chat service.
func NewID() string {
	return ulid.Make().String()
}

// ValidID reports whether s is a well formed id.
func ValidID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
