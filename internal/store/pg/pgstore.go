package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"polyrec.org/internal/ids"
	"polyrec.org/internal/ledger"
)

const pgSerializationFailure = "40001"

// Store implements ledger.Service on PostgreSQL. Payment posting runs
// serializable so the payment row, the balance decrement and the audit
// entry commit together.
type Store struct {
	db *sql.DB
}

var _ ledger.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing pool, mostly for tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) EnsureBalance(ctx context.Context, studentID, course string) (ledger.Balance, error) {
	if studentID == "" {
		return ledger.Balance{}, ledger.ErrNotFound
	}
	var sem1, sem2, sem3 decimal.Decimal
	err := s.db.QueryRowContext(ctx,
		`select sem1, sem2, sem3 from fee_structures where course=$1`, course,
	).Scan(&sem1, &sem2, &sem3)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return ledger.Balance{}, err
	}
	// No fee structure means the student starts at zero owed.
	if _, err := s.db.ExecContext(ctx, `
		insert into fee_balances(student_id, sem1, sem2, sem3, updated_at)
		values ($1,$2,$3,$4,$5)
		on conflict (student_id) do nothing
	`, studentID, sem1, sem2, sem3, time.Now().UTC()); err != nil {
		return ledger.Balance{}, err
	}
	return s.GetBalance(ctx, studentID)
}

func (s *Store) GetBalance(ctx context.Context, studentID string) (ledger.Balance, error) {
	var b ledger.Balance
	err := s.db.QueryRowContext(ctx, `
		select student_id, sem1, sem2, sem3, updated_at
		from fee_balances where student_id=$1
	`, studentID).Scan(&b.StudentID, &b.Sem1, &b.Sem2, &b.Sem3, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Balance{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Balance{}, err
	}
	return b, nil
}

func (s *Store) RemoveStudent(ctx context.Context, studentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from payments where student_id=$1`, studentID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from fee_balances where student_id=$1`, studentID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RecordPayment(ctx context.Context, actorID, studentID string, amount decimal.Decimal, term ledger.Term, reference string) (ledger.Payment, error) {
	if !amount.IsPositive() {
		return ledger.Payment{}, ledger.ErrInvalidAmount
	}
	if !term.Valid() {
		return ledger.Payment{}, ledger.ErrInvalidTerm
	}

	p, err := s.recordPaymentTx(ctx, actorID, studentID, amount, term, reference)
	if errors.Is(err, ledger.ErrTxConflict) {
		// One retry covers the common case of two clerks posting for the
		// same student at once.
		p, err = s.recordPaymentTx(ctx, actorID, studentID, amount, term, reference)
	}
	return p, err
}

func (s *Store) recordPaymentTx(ctx context.Context, actorID, studentID string, amount decimal.Decimal, term ledger.Term, reference string) (ledger.Payment, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return ledger.Payment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if reference != "" {
		var existing ledger.Payment
		err := tx.QueryRowContext(ctx, `
			select id, student_id, amount, term, reference, receipt_no, created_at
			from payments where student_id=$1 and reference=$2
		`, studentID, reference).Scan(&existing.ID, &existing.StudentID, &existing.Amount,
			&existing.Term, &existing.Reference, &existing.ReceiptNo, &existing.CreatedAt)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return ledger.Payment{}, mapPGError(err)
		}
	}

	// Get-or-create: a student admitted before their fee structure existed
	// has no balance row yet. Seed it here from the course structure (zeros
	// when none is registered). The select-from-students form also means an
	// unknown student id seeds nothing and fails the lock below.
	if _, err := tx.ExecContext(ctx, `
		insert into fee_balances(student_id, sem1, sem2, sem3, updated_at)
		select s.id, coalesce(f.sem1, 0), coalesce(f.sem2, 0), coalesce(f.sem3, 0), $2
		from students s left join fee_structures f on f.course = s.course
		where s.id = $1
		on conflict (student_id) do nothing
	`, studentID, time.Now().UTC()); err != nil {
		return ledger.Payment{}, mapPGError(err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select true from fee_balances where student_id=$1 for update`, studentID,
	).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Payment{}, ledger.ErrNotFound
		}
		return ledger.Payment{}, mapPGError(err)
	}

	p := ledger.Payment{
		ID:        ids.New(),
		StudentID: studentID,
		Amount:    amount,
		Term:      term,
		Reference: reference,
		ReceiptNo: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		insert into payments(id, student_id, amount, term, reference, receipt_no, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, p.ID, p.StudentID, p.Amount, int(p.Term), p.Reference, p.ReceiptNo, p.CreatedAt); err != nil {
		return ledger.Payment{}, mapPGError(err)
	}

	// term is validated to 1..3 before it reaches the query text.
	col := fmt.Sprintf("sem%d", term)
	if _, err := tx.ExecContext(ctx,
		`update fee_balances set `+col+` = `+col+` - $1, updated_at=$2 where student_id=$3`,
		p.Amount, p.CreatedAt, studentID); err != nil {
		return ledger.Payment{}, mapPGError(err)
	}

	if _, err := tx.ExecContext(ctx,
		`insert into audit_log(id, actor_id, action, occurred_at) values($1,$2,$3,$4)`,
		ids.New(), actorID, ledger.PaymentAction(studentID, amount, term), p.CreatedAt); err != nil {
		return ledger.Payment{}, mapPGError(err)
	}

	if err := tx.Commit(); err != nil {
		return ledger.Payment{}, mapPGError(err)
	}
	return p, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (ledger.Payment, error) {
	var p ledger.Payment
	err := s.db.QueryRowContext(ctx, `
		select id, student_id, amount, term, reference, receipt_no, created_at
		from payments where id=$1
	`, id).Scan(&p.ID, &p.StudentID, &p.Amount, &p.Term, &p.Reference, &p.ReceiptNo, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Payment{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Payment{}, err
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, studentID string) ([]ledger.Payment, error) {
	return s.queryPayments(ctx, `
		select id, student_id, amount, term, reference, receipt_no, created_at
		from payments where student_id=$1 order by created_at asc, id asc
	`, studentID)
}

func (s *Store) RecentPayments(ctx context.Context, limit int) ([]ledger.Payment, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryPayments(ctx, `
		select id, student_id, amount, term, reference, receipt_no, created_at
		from payments order by created_at desc, id desc limit $1
	`, limit)
}

func (s *Store) queryPayments(ctx context.Context, query string, arg any) ([]ledger.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		var p ledger.Payment
		if err := rows.Scan(&p.ID, &p.StudentID, &p.Amount, &p.Term,
			&p.Reference, &p.ReceiptNo, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PutFeeStructure(ctx context.Context, fs ledger.FeeStructure) error {
	if fs.Course == "" {
		return ledger.ErrInvalidCourse
	}
	_, err := s.db.ExecContext(ctx, `
		insert into fee_structures(course, sem1, sem2, sem3)
		values ($1,$2,$3,$4)
		on conflict (course) do update
		set sem1=excluded.sem1, sem2=excluded.sem2, sem3=excluded.sem3
	`, fs.Course, fs.Sem1, fs.Sem2, fs.Sem3)
	return err
}

func (s *Store) FeeStructures(ctx context.Context) ([]ledger.FeeStructure, error) {
	rows, err := s.db.QueryContext(ctx, `select course, sem1, sem2, sem3 from fee_structures order by course asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.FeeStructure
	for rows.Next() {
		var fs ledger.FeeStructure
		if err := rows.Scan(&fs.Course, &fs.Sem1, &fs.Sem2, &fs.Sem3); err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgSerializationFailure {
		return ledger.ErrTxConflict
	}
	return err
}
