package models

import (
	"strings"
	"time"
)

// User is an account plus its language-exchange profile.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Password string `json:"-"`

	FullName         string `json:"fullName"`
	Bio              string `json:"bio"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
	ProfilePic       string `json:"profilePic"`
	Location         string `json:"location"`

	IsOnboarded bool `json:"isOnboarded"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicUser is what other users get to see.
type PublicUser struct {
	ID               string `json:"id"`
	FullName         string `json:"fullName"`
	Bio              string `json:"bio"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
	ProfilePic       string `json:"profilePic"`
	Location         string `json:"location"`
	IsOnboarded      bool   `json:"isOnboarded"`
}

// Public strips credentials and contact details.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		FullName:         u.FullName,
		Bio:              u.Bio,
		NativeLanguage:   u.NativeLanguage,
		LearningLanguage: u.LearningLanguage,
		ProfilePic:       u.ProfilePic,
		Location:         u.Location,
		IsOnboarded:      u.IsOnboarded,
	}
}

// Profile holds the fields written by onboarding.
type Profile struct {
	FullName         string `json:"fullName"`
	Bio              string `json:"bio"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
	ProfilePic       string `json:"profilePic"`
	Location         string `json:"location"`
}

// Normalize trims whitespace and lower-cases the language names.
func (p Profile) Normalize() Profile {
	return Profile{
		FullName:         strings.TrimSpace(p.FullName),
		Bio:              strings.TrimSpace(p.Bio),
		NativeLanguage:   strings.ToLower(strings.TrimSpace(p.NativeLanguage)),
		LearningLanguage: strings.ToLower(strings.TrimSpace(p.LearningLanguage)),
		ProfilePic:       strings.TrimSpace(p.ProfilePic),
		Location:         strings.TrimSpace(p.Location),
	}
}

// MissingFields lists the required onboarding fields that are empty, in form order.
func (p Profile) MissingFields() []string {
	var missing []string
	if p.FullName == "" {
		missing = append(missing, "fullName")
	}
	if p.Bio == "" {
		missing = append(missing, "bio")
	}
	if p.NativeLanguage == "" {
		missing = append(missing, "nativeLanguage")
	}
	if p.LearningLanguage == "" {
		missing = append(missing, "learningLanguage")
	}
	if p.Location == "" {
		missing = append(missing, "location")
	}
	return missing
}

// Apply copies the profile onto u. An empty ProfilePic keeps the current avatar.
func (u *User) Apply(p Profile) {
	u.FullName = p.FullName
	u.Bio = p.Bio
	u.NativeLanguage = p.NativeLanguage
	u.LearningLanguage = p.LearningLanguage
	u.Location = p.Location
	if p.ProfilePic != "" {
		u.ProfilePic = p.ProfilePic
	}
}
