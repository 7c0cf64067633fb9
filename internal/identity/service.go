package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"polyrec.org/internal/ids"
)

const defaultSessionTTL = 8 * time.Hour

// Audit action texts written by the stores. The admin screens match on
// these, so they are fixed here rather than composed ad hoc.
const (
	actionRegistered = "Registered (Pending Approval)"
	actionApproved   = "Approved user: "
	actionDeleted    = "Deleted user: "
)

// Service provides the registration, approval and session operations.
type Service struct {
	store      Store
	now        func() time.Time
	sessionTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithSessionTTL configures session token lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// NewService constructs a Service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	svc := &Service{
		store:      store,
		now:        time.Now,
		sessionTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register takes an anonymous request to a pending identity: an inactive
// user plus an unapproved profile, created atomically with the department
// capacity check. The caller is shown a pending status, never logged in.
func (s *Service) Register(ctx context.Context, username, password, department string) (Principal, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return Principal{}, err
	}
	dept, err := ParseDepartment(department)
	if err != nil {
		return Principal{}, err
	}
	if err := ValidatePassword(username, password); err != nil {
		return Principal{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Principal{}, err
	}

	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Username:     username,
		PasswordHash: hash,
		Active:       false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &Profile{
		UserID:     user.ID,
		Department: dept,
		Approved:   false,
		CreatedAt:  now,
	}

	err = s.store.CreateApplicant(ctx, user, profile)
	if errors.Is(err, ErrTxConflict) {
		// Concurrent registration for the same department; one retry is
		// enough to observe the committed count.
		err = s.store.CreateApplicant(ctx, user, profile)
	}
	if err != nil {
		return Principal{}, err
	}
	return Principal{User: user, Profile: profile}, nil
}

// Login verifies credentials and issues a session token. Unapproved users
// get ErrPendingApproval together with their principal so the caller can
// render the pending page; they never receive a token.
func (s *Service) Login(ctx context.Context, username, password string) (string, Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", Principal{}, ErrUnauthorized
	}
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return "", Principal{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return "", Principal{}, ErrUnauthorized
	}
	principal, err := s.resolve(ctx, user)
	if err != nil {
		return "", Principal{}, err
	}
	if !user.Active {
		return "", principal, ErrPendingApproval
	}
	token, err := GenerateToken(user.ID, user.Staff, s.sessionTTL)
	if err != nil {
		return "", Principal{}, err
	}
	return token, principal, nil
}

// AuthenticateToken validates a session token and loads its principal.
// Tokens of users that have since been deactivated or deleted are rejected.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	principal, err := s.Principal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if principal.User == nil || !principal.User.Active {
		return Principal{}, ErrInvalidToken
	}
	return principal, nil
}

// Principal loads a user with its profile resolved.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.Find(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	return s.resolve(ctx, user)
}

// Approve activates the target user and approves its profile in one
// operation. Staff capability required.
func (s *Service) Approve(ctx context.Context, actor Principal, userID string) (*User, error) {
	if !AuthorizeAdmin(actor) {
		return nil, ErrForbidden
	}
	return s.store.Approve(ctx, actor.User.ID, userID)
}

// Deny deletes the target user, cascading its profile. Staff capability
// required.
func (s *Service) Deny(ctx context.Context, actor Principal, userID string) (*User, error) {
	if !AuthorizeAdmin(actor) {
		return nil, ErrForbidden
	}
	return s.store.Delete(ctx, actor.User.ID, userID)
}

// PendingUsers lists registrations awaiting approval. Staff capability
// required.
func (s *Service) PendingUsers(ctx context.Context, actor Principal) ([]Principal, error) {
	if !AuthorizeAdmin(actor) {
		return nil, ErrForbidden
	}
	return s.store.ListPending(ctx)
}

func (s *Service) resolve(ctx context.Context, user *User) (Principal, error) {
	profile, err := s.store.ProfileOf(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{User: user}, nil
		}
		return Principal{}, err
	}
	return Principal{User: user, Profile: profile}, nil
}
