package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"polyrec.org/internal/audit"
	"polyrec.org/internal/ids"
)

func newTestService(t *testing.T) (*Service, *InMemory, *audit.InMemory) {
	t.Helper()
	sink := audit.NewInMemory()
	store := NewInMemory(sink)
	return NewService(store), store, sink
}

func seedStaff(t *testing.T, store *InMemory) Principal {
	t.Helper()
	hash, err := HashPassword("north-window-7")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := User{
		ID:           ids.New(),
		Username:     "principal",
		PasswordHash: hash,
		Active:       true,
		Staff:        true,
		CreatedAt:    time.Now().UTC(),
	}
	store.Seed(admin, nil)
	return Principal{User: &admin}
}

func TestRegisterDepartmentCapacity(t *testing.T) {
	svc, _, sink := newTestService(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, "alice", "ledger-green-42", "finance")
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if alice.User.Active {
		t.Fatal("new registration must be inactive")
	}
	if alice.Profile.Approved {
		t.Fatal("new registration must be unapproved")
	}

	if _, err := svc.Register(ctx, "bob", "ledger-green-43", "finance"); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	entriesBefore, _ := sink.Recent(ctx, 100)

	_, err = svc.Register(ctx, "carol", "ledger-green-44", "finance")
	if !errors.Is(err, ErrDepartmentFull) {
		t.Fatalf("expected ErrDepartmentFull, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "carol", "ledger-green-44"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("carol must not exist after rejection, got %v", err)
	}
	entriesAfter, _ := sink.Recent(ctx, 100)
	if len(entriesAfter) != len(entriesBefore) {
		t.Fatalf("rejected registration must not append audit entries: %d -> %d",
			len(entriesBefore), len(entriesAfter))
	}

	// Other departments are unaffected by finance being full.
	if _, err := svc.Register(ctx, "carol", "ledger-green-44", "stores"); err != nil {
		t.Fatalf("register carol to stores: %v", err)
	}
}

func TestRegisterUsernameTaken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "ledger-green-42", "finance"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(ctx, "alice", "other-secret-9", "stores")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		username   string
		password   string
		department string
	}{
		{"empty username", "", "ledger-green-42", "finance"},
		{"bad department", "alice", "ledger-green-42", "sports"},
		{"short password", "alice", "short", "finance"},
		{"numeric password", "alice", "1234567890", "finance"},
		{"common password", "alice", "password1", "finance"},
		{"similar to username", "alice", "alice2024", "finance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.password, tc.department)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestApproveActivatesUserAndProfileTogether(t *testing.T) {
	svc, store, sink := newTestService(t)
	ctx := context.Background()
	admin := seedStaff(t, store)

	alice, err := svc.Register(ctx, "alice", "ledger-green-42", "finance")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	approved, err := svc.Approve(ctx, admin, alice.User.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.Active {
		t.Fatal("approved user must be active")
	}
	profile, err := store.ProfileOf(ctx, alice.User.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if !profile.Approved {
		t.Fatal("profile must be approved in the same operation")
	}

	entries, _ := sink.Recent(ctx, 10)
	if len(entries) == 0 || !strings.Contains(entries[0].Action, "Approved user: alice") {
		t.Fatalf("expected approval audit entry, got %+v", entries)
	}
}

func TestApproveRequiresStaff(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	_ = seedStaff(t, store)

	alice, err := svc.Register(ctx, "alice", "ledger-green-42", "finance")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	bob, err := svc.Register(ctx, "bob", "ledger-green-43", "finance")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Approve(ctx, bob, alice.User.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-staff actor, got %v", err)
	}
}

func TestDenyDeletesUserAndProfile(t *testing.T) {
	svc, store, sink := newTestService(t)
	ctx := context.Background()
	admin := seedStaff(t, store)

	alice, err := svc.Register(ctx, "alice", "ledger-green-42", "finance")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Deny(ctx, admin, alice.User.ID); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if _, err := store.Find(ctx, alice.User.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user must be gone, got %v", err)
	}
	if _, err := store.ProfileOf(ctx, alice.User.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("profile must cascade, got %v", err)
	}

	entries, _ := sink.Recent(ctx, 10)
	if len(entries) == 0 || !strings.Contains(entries[0].Action, "Deleted user: alice") {
		t.Fatalf("expected deletion audit entry, got %+v", entries)
	}

	// The freed slot can be taken again.
	if _, err := svc.Register(ctx, "dave", "ledger-green-45", "finance"); err != nil {
		t.Fatalf("register after deny: %v", err)
	}

	if _, err := svc.Deny(ctx, admin, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoginPendingApproval(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	defer ResetSecretForTests()

	svc, store, _ := newTestService(t)
	ctx := context.Background()
	admin := seedStaff(t, store)

	alice, err := svc.Register(ctx, "alice", "ledger-green-42", "finance")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, principal, err := svc.Login(ctx, "alice", "ledger-green-42")
	if !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("expected ErrPendingApproval, got %v", err)
	}
	if token != "" {
		t.Fatal("pending user must not receive a token")
	}
	if RouteAfterLogin(principal) != DestPending {
		t.Fatalf("expected pending destination, got %v", RouteAfterLogin(principal))
	}

	if _, err := svc.Approve(ctx, admin, alice.User.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	token, principal, err = svc.Login(ctx, "alice", "ledger-green-42")
	if err != nil {
		t.Fatalf("login after approval: %v", err)
	}
	if token == "" {
		t.Fatal("expected session token")
	}
	if got := RouteAfterLogin(principal); got != Destination(DeptFinance) {
		t.Fatalf("expected finance destination, got %v", got)
	}

	// Bad credentials are a generic denial.
	if _, _, err := svc.Login(ctx, "alice", "wrong-password-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticateTokenRoundTrip(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()
	defer ResetSecretForTests()

	svc, store, _ := newTestService(t)
	ctx := context.Background()
	admin := seedStaff(t, store)

	alice, err := svc.Register(ctx, "alice", "ledger-green-42", "finance")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Approve(ctx, admin, alice.User.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	token, _, err := svc.Login(ctx, "alice", "ledger-green-42")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	principal, err := svc.AuthenticateToken(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.User.Username != "alice" {
		t.Fatalf("unexpected principal: %+v", principal.User)
	}

	// A token for a user deleted since issuance is rejected.
	if _, err := svc.Deny(ctx, admin, alice.User.ID); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if _, err := svc.AuthenticateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after deletion, got %v", err)
	}

	if _, err := svc.AuthenticateToken(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPendingUsersListing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	admin := seedStaff(t, store)

	if _, err := svc.Register(ctx, "alice", "ledger-green-42", "finance"); err != nil {
		t.Fatalf("register: %v", err)
	}
	bob, err := svc.Register(ctx, "bob", "ledger-green-43", "stores")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Approve(ctx, admin, bob.User.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, err := svc.PendingUsers(ctx, admin)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].User.Username != "alice" {
		t.Fatalf("expected only alice pending, got %+v", pending)
	}

	if _, err := svc.PendingUsers(ctx, Principal{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for anonymous caller, got %v", err)
	}
}
