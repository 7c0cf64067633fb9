package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGCreateApplicant(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	now := time.Now().UTC()
	user := &User{ID: "u1", Username: "alice", PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}
	profile := &Profile{UserID: "u1", Department: DeptFinance, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectQuery("select count").
		WithArgs("finance").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("insert into users").
		WithArgs("u1", "alice", "hash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into profiles").
		WithArgs("u1", "finance", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into audit_log").
		WithArgs(sqlmock.AnyArg(), "u1", "Registered (Pending Approval)", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.CreateApplicant(context.Background(), user, profile); err != nil {
		t.Fatalf("CreateApplicant: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGCreateApplicantDepartmentFull(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	now := time.Now().UTC()
	user := &User{ID: "u1", Username: "carol", PasswordHash: "hash", CreatedAt: now}
	profile := &Profile{UserID: "u1", Department: DeptFinance, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectQuery("select count").
		WithArgs("finance").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err = store.CreateApplicant(context.Background(), user, profile)
	if !errors.Is(err, ErrDepartmentFull) {
		t.Fatalf("expected ErrDepartmentFull, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGApproveFlipsBothFlags(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("select username from users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("alice"))
	mock.ExpectExec("update users set active=true").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update profiles set is_approved=true").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into audit_log").
		WithArgs(sqlmock.AnyArg(), "admin", "Approved user: alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("select id, username, password_hash, active, staff, created_at, updated_at from users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "username", "password_hash", "active", "staff", "created_at", "updated_at"},
		).AddRow("u1", "alice", "hash", true, false, now, now))

	user, err := store.Approve(context.Background(), "admin", "u1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !user.Active {
		t.Fatal("expected active user")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGApproveNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("select username from users").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"username"}))
	mock.ExpectRollback()

	if _, err := store.Approve(context.Background(), "admin", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
