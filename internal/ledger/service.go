package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"polyrec.org/internal/audit"
	"polyrec.org/internal/ids"
)

// Service defines fee ledger operations.
type Service interface {
	// EnsureBalance seeds the fee balance for a newly admitted student from
	// the course fee structure. Calling it again for the same student is a
	// no-op returning the current balance.
	EnsureBalance(ctx context.Context, studentID, course string) (Balance, error)
	GetBalance(ctx context.Context, studentID string) (Balance, error)
	// RemoveStudent drops the balance and payment history of a student.
	RemoveStudent(ctx context.Context, studentID string) error

	// RecordPayment posts a payment and decrements the matching semester
	// balance in the same operation, creating the balance on demand when
	// the student has none yet. A non-empty reference is idempotent:
	// posting the same reference again returns the original payment.
	RecordPayment(ctx context.Context, actorID, studentID string, amount decimal.Decimal, term Term, reference string) (Payment, error)
	GetPayment(ctx context.Context, id string) (Payment, error)
	ListPayments(ctx context.Context, studentID string) ([]Payment, error)
	RecentPayments(ctx context.Context, limit int) ([]Payment, error)

	PutFeeStructure(ctx context.Context, fs FeeStructure) error
	FeeStructures(ctx context.Context) ([]FeeStructure, error)
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu       sync.RWMutex
	balances map[string]*Balance
	payments map[string]Payment
	order    []string // payment ids, oldest first
	byRef    map[string]string
	fees     map[string]FeeStructure
	audit    audit.Store
	now      func() time.Time
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates a fresh ledger writing audit entries to sink.
func NewInMemory(sink audit.Store) *InMemory {
	if sink == nil {
		sink = audit.NewInMemory()
	}
	return &InMemory{
		balances: make(map[string]*Balance),
		payments: make(map[string]Payment),
		byRef:    make(map[string]string),
		fees:     make(map[string]FeeStructure),
		audit:    sink,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemory) EnsureBalance(ctx context.Context, studentID, course string) (Balance, error) {
	if studentID == "" {
		return Balance{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.balances[studentID]; ok {
		return *b, nil
	}
	b := &Balance{StudentID: studentID, UpdatedAt: s.now()}
	// Unknown courses start at zero owed; the fee structure can be
	// registered later and applies to subsequent admissions only.
	if fs, ok := s.fees[course]; ok {
		b.Sem1, b.Sem2, b.Sem3 = fs.Sem1, fs.Sem2, fs.Sem3
	}
	s.balances[studentID] = b
	return *b, nil
}

func (s *InMemory) GetBalance(ctx context.Context, studentID string) (Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[studentID]
	if !ok {
		return Balance{}, ErrNotFound
	}
	return *b, nil
}

func (s *InMemory) RemoveStudent(ctx context.Context, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.balances, studentID)
	kept := s.order[:0]
	for _, id := range s.order {
		p := s.payments[id]
		if p.StudentID == studentID {
			delete(s.payments, id)
			if p.Reference != "" {
				delete(s.byRef, refKey(studentID, p.Reference))
			}
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

func (s *InMemory) RecordPayment(ctx context.Context, actorID, studentID string, amount decimal.Decimal, term Term, reference string) (Payment, error) {
	if studentID == "" {
		return Payment{}, ErrNotFound
	}
	if !amount.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}
	if !term.Valid() {
		return Payment{}, ErrInvalidTerm
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if reference != "" {
		if id, ok := s.byRef[refKey(studentID, reference)]; ok {
			return s.payments[id], nil
		}
	}

	b, ok := s.balances[studentID]
	if !ok {
		// Get-or-create: a student with no balance row yet starts at zero
		// owed and the payment posts as a credit.
		b = &Balance{StudentID: studentID, UpdatedAt: s.now()}
		s.balances[studentID] = b
	}

	p := Payment{
		ID:        ids.New(),
		StudentID: studentID,
		Amount:    amount,
		Term:      term,
		Reference: reference,
		ReceiptNo: uuid.NewString(),
		CreatedAt: s.now(),
	}
	b.applyPayment(term, amount)
	b.UpdatedAt = p.CreatedAt
	s.payments[p.ID] = p
	s.order = append(s.order, p.ID)
	if reference != "" {
		s.byRef[refKey(studentID, reference)] = p.ID
	}

	_ = s.audit.Append(ctx, &audit.Entry{
		ID:         ids.New(),
		ActorID:    actorID,
		Action:     PaymentAction(studentID, amount, term),
		OccurredAt: p.CreatedAt,
	})
	return p, nil
}

func (s *InMemory) GetPayment(ctx context.Context, id string) (Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (s *InMemory) ListPayments(ctx context.Context, studentID string) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Payment
	for _, id := range s.order {
		if p := s.payments[id]; p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *InMemory) RecentPayments(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Payment, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.payments[s.order[i]])
	}
	return out, nil
}

func (s *InMemory) PutFeeStructure(ctx context.Context, fs FeeStructure) error {
	if fs.Course == "" {
		return ErrInvalidCourse
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees[fs.Course] = fs
	return nil
}

func (s *InMemory) FeeStructures(ctx context.Context) ([]FeeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FeeStructure, 0, len(s.fees))
	for _, fs := range s.fees {
		out = append(out, fs)
	}
	return out, nil
}

// PaymentAction builds the audit line for a posted payment. Both stores
// use it so the trail reads the same regardless of backing storage.
func PaymentAction(studentID string, amount decimal.Decimal, term Term) string {
	return fmt.Sprintf("Recorded payment of %s for student %s (term %d)", amount.StringFixed(2), studentID, term)
}

func refKey(studentID, reference string) string {
	return studentID + "\x00" + reference
}
