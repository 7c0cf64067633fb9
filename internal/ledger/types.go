package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Term numbers the semesters a course year is billed in.
type Term int

const (
	Term1 Term = 1
	Term2 Term = 2
	Term3 Term = 3
)

func (t Term) Valid() bool { return t >= Term1 && t <= Term3 }

// Balance holds the outstanding fees per semester for one student.
// Amounts are exact decimals; overpayment drives a balance negative,
// which is carried as credit rather than rejected.
type Balance struct {
	StudentID string          `json:"student_id"`
	Sem1      decimal.Decimal `json:"sem1"`
	Sem2      decimal.Decimal `json:"sem2"`
	Sem3      decimal.Decimal `json:"sem3"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TotalDue sums the three semester balances.
func (b Balance) TotalDue() decimal.Decimal {
	return b.Sem1.Add(b.Sem2).Add(b.Sem3)
}

// ForTerm returns the outstanding amount for one semester.
func (b Balance) ForTerm(t Term) decimal.Decimal {
	switch t {
	case Term1:
		return b.Sem1
	case Term2:
		return b.Sem2
	case Term3:
		return b.Sem3
	}
	return decimal.Zero
}

func (b *Balance) applyPayment(t Term, amount decimal.Decimal) {
	switch t {
	case Term1:
		b.Sem1 = b.Sem1.Sub(amount)
	case Term2:
		b.Sem2 = b.Sem2.Sub(amount)
	case Term3:
		b.Sem3 = b.Sem3.Sub(amount)
	}
}

// Payment is one posted fee payment.
type Payment struct {
	ID        string          `json:"id"`
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount"`
	Term      Term            `json:"term"`
	Reference string          `json:"reference,omitempty"`
	ReceiptNo string          `json:"receipt_no"`
	CreatedAt time.Time       `json:"created_at"`
}

// FeeStructure is the per-course semester billing used to seed balances.
type FeeStructure struct {
	Course string          `json:"course"`
	Sem1   decimal.Decimal `json:"sem1"`
	Sem2   decimal.Decimal `json:"sem2"`
	Sem3   decimal.Decimal `json:"sem3"`
}

var (
	ErrNotFound      = errors.New("ledger: not found")
	ErrInvalidAmount = errors.New("ledger: invalid amount (must be > 0)")
	ErrInvalidTerm   = errors.New("ledger: invalid term")
	ErrInvalidCourse = errors.New("ledger: invalid course")
	ErrTxConflict    = errors.New("ledger: transaction conflict")
)
