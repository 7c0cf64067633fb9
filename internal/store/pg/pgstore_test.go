package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"polyrec.org/internal/ledger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestRecordPaymentCommitsRowBalanceAndAudit(t *testing.T) {
	store, mock := newMockStore(t)
	amount := decimal.RequireFromString("4500.50")

	mock.ExpectBegin()
	mock.ExpectExec("insert into fee_balances").
		WithArgs("stu-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select true from fee_balances").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"true"}).AddRow(true))
	mock.ExpectExec("insert into payments").
		WithArgs(sqlmock.AnyArg(), "stu-1", sqlmock.AnyArg(), 2, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update fee_balances set sem2 = sem2").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "stu-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into audit_log").
		WithArgs(sqlmock.AnyArg(), "clerk-1", ledger.PaymentAction("stu-1", amount, ledger.Term2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, err := store.RecordPayment(context.Background(), "clerk-1", "stu-1", amount, ledger.Term2, "")
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if p.ReceiptNo == "" || p.ID == "" {
		t.Fatalf("payment missing identifiers: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordPaymentReplaysExistingReference(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("select id, student_id, amount, term, reference, receipt_no, created_at").
		WithArgs("stu-1", "MPESA-007").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "student_id", "amount", "term", "reference", "receipt_no", "created_at"},
		).AddRow("pay-1", "stu-1", "1000", 1, "MPESA-007", "rcpt-1", created))
	mock.ExpectRollback()

	p, err := store.RecordPayment(context.Background(), "clerk-1", "stu-1",
		decimal.RequireFromString("1000.00"), ledger.Term1, "MPESA-007")
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if p.ID != "pay-1" {
		t.Fatalf("expected existing payment, got %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordPaymentSeedsBalanceOnDemand(t *testing.T) {
	store, mock := newMockStore(t)
	amount := decimal.RequireFromString("100.00")

	mock.ExpectBegin()
	mock.ExpectExec("insert into fee_balances").
		WithArgs("stu-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select true from fee_balances").
		WithArgs("stu-2").
		WillReturnRows(sqlmock.NewRows([]string{"true"}).AddRow(true))
	mock.ExpectExec("insert into payments").
		WithArgs(sqlmock.AnyArg(), "stu-2", sqlmock.AnyArg(), 1, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update fee_balances set sem1 = sem1").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "stu-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into audit_log").
		WithArgs(sqlmock.AnyArg(), "clerk-1", ledger.PaymentAction("stu-2", amount, ledger.Term1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := store.RecordPayment(context.Background(), "clerk-1", "stu-2", amount, ledger.Term1, ""); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordPaymentUnknownStudent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into fee_balances").
		WithArgs("ghost", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select true from fee_balances").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"true"}))
	mock.ExpectRollback()

	_, err := store.RecordPayment(context.Background(), "clerk-1", "ghost",
		decimal.RequireFromString("10"), ledger.Term1, "")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordPaymentRejectsBadInputWithoutQuerying(t *testing.T) {
	store, mock := newMockStore(t)

	if _, err := store.RecordPayment(context.Background(), "clerk-1", "stu-1",
		decimal.Zero, ledger.Term1, ""); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := store.RecordPayment(context.Background(), "clerk-1", "stu-1",
		decimal.RequireFromString("10"), ledger.Term(9), ""); !errors.Is(err, ledger.ErrInvalidTerm) {
		t.Fatalf("expected ErrInvalidTerm, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureBalanceSeedsFromFeeStructure(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select sem1, sem2, sem3 from fee_structures").
		WithArgs("electrical").
		WillReturnRows(sqlmock.NewRows([]string{"sem1", "sem2", "sem3"}).
			AddRow("12000.00", "10000.00", "8000.00"))
	mock.ExpectExec("insert into fee_balances").
		WithArgs("stu-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select student_id, sem1, sem2, sem3, updated_at").
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "sem1", "sem2", "sem3", "updated_at"}).
			AddRow("stu-1", "12000.00", "10000.00", "8000.00", now))

	b, err := store.EnsureBalance(context.Background(), "stu-1", "electrical")
	if err != nil {
		t.Fatalf("EnsureBalance: %v", err)
	}
	if !b.TotalDue().Equal(decimal.RequireFromString("30000.00")) {
		t.Fatalf("total = %s, want 30000.00", b.TotalDue())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
