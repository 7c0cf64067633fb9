package identity

import "context"

// Store describes persistence operations required by the identity subsystem.
//
// CreateApplicant, Approve and Delete are transactional: the capacity check,
// the row writes and the audit append either all happen or none do.
type Store interface {
	// CreateApplicant inserts an inactive user with its unapproved profile
	// and the registration audit entry. The department capacity check runs
	// inside the same transaction as the inserts. Fails with
	// ErrUsernameTaken or ErrDepartmentFull.
	CreateApplicant(ctx context.Context, u *User, p *Profile) error

	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	// ProfileOf returns ErrNotFound when the user has no profile.
	ProfileOf(ctx context.Context, userID string) (*Profile, error)

	// Approve activates the user and approves its profile in one
	// transaction, appending the approval audit entry attributed to actorID.
	Approve(ctx context.Context, actorID, userID string) (*User, error)
	// Delete removes the user and cascades its profile, appending the
	// deletion audit entry attributed to actorID.
	Delete(ctx context.Context, actorID, userID string) (*User, error)

	// ListPending returns users whose profile awaits approval, oldest first.
	ListPending(ctx context.Context) ([]Principal, error)
}
