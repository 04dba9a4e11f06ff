package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"treasura.org/internal/session"
)

const defaultTokenTTL = 12 * time.Hour

// ErrInvalidInput indicates missing or malformed login input.
var ErrInvalidInput = errors.New("auth: invalid input")

// LoginRecord is the credential row joined with the user's role.
type LoginRecord struct {
	UserID       int64
	EmployeeName string
	Email        string
	PasswordHash string
	RoleName     string
	RoleCode     string
}

// LoginStore resolves credentials by email.
type LoginStore interface {
	FindByEmail(ctx context.Context, email string) (LoginRecord, error)
}

// Service handles login/logout and session bookkeeping.
type Service struct {
	store    LoginStore
	sessions *session.Directory
	tokenTTL time.Duration
	now      func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithTokenTTL overrides the issued token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth service.
func NewService(store LoginStore, sessions *session.Directory, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: login store is required")
	}
	if sessions == nil {
		return nil, errors.New("auth: session directory is required")
	}
	svc := &Service{store: store, sessions: sessions, tokenTTL: defaultTokenTTL, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// LoginResult is what a successful login returns to the caller.
type LoginResult struct {
	Session   session.Record
	Token     string
	ExpiresAt time.Time
}

// Login verifies credentials, upserts the session record, and issues a token.
// Any credential failure maps to ErrUnauthorized without detail.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrUnauthorized
	}
	rec, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, ErrUnauthorized
	}
	if err := VerifyPassword(rec.PasswordHash, password); err != nil {
		return LoginResult{}, ErrUnauthorized
	}

	now := s.now().UTC()
	sess := session.Record{
		UserID:        rec.UserID,
		Name:          rec.EmployeeName,
		Email:         rec.Email,
		Role:          rec.RoleName,
		RoleCode:      rec.RoleCode,
		LastLoginTime: now,
		IsLoggedIn:    true,
	}
	token, err := GenerateToken(rec.UserID, rec.RoleName, rec.RoleCode, s.tokenTTL)
	if err != nil {
		return LoginResult{}, err
	}
	s.sessions.Add(sess)
	return LoginResult{Session: sess, Token: token, ExpiresAt: now.Add(s.tokenTTL)}, nil
}

// Logout removes the user's session and returns how many remain.
func (s *Service) Logout(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, ErrInvalidInput
	}
	return s.sessions.Clear(userID), nil
}

// Session returns the active session for userID, if any.
func (s *Service) Session(userID int64) (session.Record, bool) {
	return s.sessions.Get(userID)
}
