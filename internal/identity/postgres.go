package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"polyrec.org/internal/ids"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
)

// PGStore implements Store using PostgreSQL. Registration, approval and
// deletion each run as one transaction so the audit entry and the row
// changes commit together.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateApplicant(ctx context.Context, u *User, p *Profile) error {
	// Serializable so the capacity count and the insert cannot interleave
	// with a concurrent registration for the same department.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx,
		`select count(*) from profiles where department=$1`, string(p.Department),
	).Scan(&count); err != nil {
		return mapPGError(err)
	}
	if count >= DepartmentCapacity {
		return ErrDepartmentFull
	}

	if _, err := tx.ExecContext(ctx, `
		insert into users(id, username, password_hash, active, staff, created_at, updated_at)
		values ($1,$2,$3,false,false,$4,$4)
	`, u.ID, u.Username, u.PasswordHash, u.CreatedAt); err != nil {
		return mapPGError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		insert into profiles(user_id, department, is_approved, created_at)
		values ($1,$2,false,$3)
	`, p.UserID, string(p.Department), p.CreatedAt); err != nil {
		return mapPGError(err)
	}
	if err := appendAuditTx(ctx, tx, u.ID, actionRegistered); err != nil {
		return mapPGError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapPGError(err)
	}
	return nil
}

func (s *PGStore) Find(ctx context.Context, id string) (*User, error) {
	return s.findUser(ctx, `where id=$1`, id)
}

func (s *PGStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findUser(ctx, `where username=$1`, username)
}

func (s *PGStore) findUser(ctx context.Context, where string, arg any) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, username, password_hash, active, staff, created_at, updated_at from users `+where, arg)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Active, &u.Staff, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) ProfileOf(ctx context.Context, userID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select user_id, department, is_approved, created_at from profiles where user_id=$1`, userID)
	var (
		p    Profile
		dept string
	)
	if err := row.Scan(&p.UserID, &dept, &p.Approved, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Department = Department(dept)
	return &p, nil
}

func (s *PGStore) Approve(ctx context.Context, actorID, userID string) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var username string
	if err := tx.QueryRowContext(ctx,
		`select username from users where id=$1 for update`, userID,
	).Scan(&username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Both flags flip in the same transaction: an active user with an
	// unapproved profile must never be observable.
	if _, err := tx.ExecContext(ctx,
		`update users set active=true, updated_at=now() where id=$1`, userID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`update profiles set is_approved=true where user_id=$1`, userID); err != nil {
		return nil, err
	}
	if err := appendAuditTx(ctx, tx, actorID, actionApproved+username); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapPGError(err)
	}
	return s.Find(ctx, userID)
}

func (s *PGStore) Delete(ctx context.Context, actorID, userID string) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	user, err := s.findUser(ctx, `where id=$1`, userID)
	if err != nil {
		return nil, err
	}

	// profiles cascade via the FK.
	if _, err := tx.ExecContext(ctx, `delete from users where id=$1`, userID); err != nil {
		return nil, err
	}
	if err := appendAuditTx(ctx, tx, actorID, actionDeleted+user.Username); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, mapPGError(err)
	}
	return user, nil
}

func (s *PGStore) ListPending(ctx context.Context) ([]Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		select u.id, u.username, u.active, u.staff, u.created_at, u.updated_at,
		       p.department, p.is_approved, p.created_at
		from users u
		join profiles p on p.user_id = u.id
		where p.is_approved = false
		order by u.created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Principal
	for rows.Next() {
		var (
			u    User
			p    Profile
			dept string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Active, &u.Staff, &u.CreatedAt, &u.UpdatedAt,
			&dept, &p.Approved, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.UserID = u.ID
		p.Department = Department(dept)
		uc, pc := u, p
		res = append(res, Principal{User: &uc, Profile: &pc})
	}
	return res, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendAuditTx(ctx context.Context, tx execer, actorID, action string) error {
	_, err := tx.ExecContext(ctx,
		`insert into audit_log(id, actor_id, action, occurred_at) values($1,$2,$3,$4)`,
		ids.New(), actorID, action, time.Now().UTC(),
	)
	return err
}

func mapPGError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrUsernameTaken
		case pgSerializationFailure:
			return ErrTxConflict
		}
	}
	return err
}
