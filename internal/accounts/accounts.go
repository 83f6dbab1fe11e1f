// Package accounts implements signup, login, logout and onboarding on top of
// the user store and the session manager.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/streamify/internal/apperr"
	"github.com/jason-s-yu/streamify/internal/auth"
	"github.com/jason-s-yu/streamify/internal/database"
	"github.com/jason-s-yu/streamify/pkg/models"
)

const (
	msgAllFieldsRequired = "All fields are required"
	msgPasswordTooShort  = "Password must be at least 6 characters"
	msgInvalidEmail      = "Invalid email format"
	msgEmailTaken        = "Email already exists, please use a different one"
	msgBadCredentials    = "Invalid email or password"
	msgUnauthorized      = "Unauthorized - Invalid token"
	msgNoToken           = "Unauthorized - No token provided"
	msgUserGone          = "Unauthorized - User not found"
)

// AvatarURL returns the generated avatar with index n (1..100).
func AvatarURL(n int) string {
	return fmt.Sprintf("https://avatar.iran.liara.run/public/%d.png", n)
}

// ChatSyncer mirrors profiles into the hosted chat service.
type ChatSyncer interface {
	SyncUser(ctx context.Context, u models.User)
}

type SignupInput struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Result is a user with a freshly issued session.
type Result struct {
	User   *models.User
	Token  string
	Claims *auth.Claims
}

type Service struct {
	users    database.Users
	sessions *auth.SessionManager
	chat     ChatSyncer
	logger   *logrus.Logger
	validate *validator.Validate
	avatar   func() string
	hash     func(string) (string, error)
}

// NewService returns a Service. chat may be nil.
func NewService(users database.Users, sessions *auth.SessionManager, chat ChatSyncer, logger *logrus.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		chat:     chat,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		avatar:   func() string { return AvatarURL(rand.IntN(100) + 1) },
		hash:     auth.HashPassword,
	}
}

// Signup creates an account with a random avatar and logs it in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Result, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validate.Struct(in); err != nil {
		return nil, signupError(err)
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, apperr.New(apperr.Conflict, msgEmailTaken)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("look up email: %w", err)
	}

	hashed, err := s.hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		ID:         database.NewID(),
		Email:      in.Email,
		Password:   hashed,
		FullName:   in.FullName,
		ProfilePic: s.avatar(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Conflict, msgEmailTaken, err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.WithField("user", u.ID).Info("user signed up")

	if s.chat != nil {
		s.chat.SyncUser(ctx, *u)
	}
	return s.issue(u)
}

// signupError turns validator output into the first applicable message.
func signupError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Invalid(msgAllFieldsRequired)
	}
	var missing []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, jsonName(fe.Field()))
		}
	}
	if len(missing) > 0 {
		return apperr.Invalid(msgAllFieldsRequired, missing...)
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "min":
			return apperr.Invalid(msgPasswordTooShort, "password")
		case "email":
			return apperr.Invalid(msgInvalidEmail, "email")
		}
	}
	return apperr.Invalid(verrs.Error())
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// Login checks credentials. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Result, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return nil, signupError(err)
	}

	u, err := s.users.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.New(apperr.Unauthorized, msgBadCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("look up email: %w", err)
	}

	ok, err := auth.VerifyPassword(in.Password, u.Password)
	if err != nil {
		s.logger.WithField("user", u.ID).Errorf("stored password hash unreadable: %v", err)
		return nil, apperr.New(apperr.Unauthorized, msgBadCredentials)
	}
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, msgBadCredentials)
	}
	return s.issue(u)
}

func (s *Service) issue(u *models.User) (*Result, error) {
	token, claims, err := s.sessions.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Result{User: u, Token: token, Claims: claims}, nil
}

// Logout revokes token if it is a valid session. Invalid tokens are ignored so
// logout always succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.sessions.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to the session of an existing user.
func (s *Service) Authenticate(ctx context.Context, token string) (*auth.Session, error) {
	if token == "" {
		return nil, apperr.New(apperr.Unauthorized, msgNoToken)
	}
	claims, err := s.sessions.Verify(ctx, token)
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevokedToken) {
		return nil, apperr.Wrap(apperr.Unauthorized, msgUnauthorized, err)
	}
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.New(apperr.Unauthorized, msgUserGone)
	}
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return &auth.Session{User: u, Claims: claims}, nil
}

// Onboard completes userID's profile. Missing required fields are reported together.
func (s *Service) Onboard(ctx context.Context, userID string, p models.Profile) (*models.User, error) {
	p = p.Normalize()
	if missing := p.MissingFields(); len(missing) > 0 {
		return nil, apperr.Invalid(msgAllFieldsRequired, missing...)
	}

	u, err := s.users.CompleteOnboarding(ctx, userID, p)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("complete onboarding: %w", err)
	}
	s.logger.WithField("user", u.ID).Info("user onboarded")

	if s.chat != nil {
		s.chat.SyncUser(ctx, *u)
	}
	return u, nil
}
