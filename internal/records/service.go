package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"polyrec.org/internal/audit"
	"polyrec.org/internal/ids"
	"polyrec.org/internal/ledger"
)

const (
	actionAdmitted = "Admitted student: "
	actionDeleted  = "Deleted student: "
)

// Service implements student, examination and stores operations on top of a
// Store. Admission seeds the student's fee balance from the course fee
// structure, and admissions and deletions leave audit entries.
type Service struct {
	store Store
	fees  ledger.Service
	audit audit.Store
	now   func() time.Time
}

func NewService(store Store, fees ledger.Service, sink audit.Store) *Service {
	if sink == nil {
		sink = audit.NewInMemory()
	}
	return &Service{
		store: store,
		fees:  fees,
		audit: sink,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) AdmitStudent(ctx context.Context, actorID string, st Student) (*Student, error) {
	st.Name = strings.TrimSpace(st.Name)
	st.AdmissionNo = strings.TrimSpace(st.AdmissionNo)
	st.Course = strings.TrimSpace(st.Course)
	if st.Name == "" || st.AdmissionNo == "" || st.Course == "" {
		return nil, fmt.Errorf("%w: name, admission number and course are required", ErrInvalidInput)
	}
	if st.Sex != "" && st.Sex != "Male" && st.Sex != "Female" {
		return nil, fmt.Errorf("%w: unknown sex %q", ErrInvalidInput, st.Sex)
	}
	if st.YearEnrolled == 0 {
		st.YearEnrolled = s.now().Year()
	}

	st.ID = ids.New()
	st.CreatedAt = s.now()
	if err := s.store.CreateStudent(ctx, &st); err != nil {
		return nil, err
	}
	// EnsureBalance is idempotent, so a retry after a partial failure
	// cannot double-seed.
	if _, err := s.fees.EnsureBalance(ctx, st.ID, st.Course); err != nil {
		return nil, err
	}
	s.append(ctx, actorID, actionAdmitted+st.Name)
	return &st, nil
}

func (s *Service) DeleteStudent(ctx context.Context, actorID, id string) (*Student, error) {
	st, err := s.store.DeleteStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fees.RemoveStudent(ctx, id); err != nil {
		return nil, err
	}
	s.append(ctx, actorID, actionDeleted+st.Name)
	return st, nil
}

func (s *Service) Student(ctx context.Context, id string) (*Student, error) {
	return s.store.GetStudent(ctx, id)
}

func (s *Service) StudentByAdmissionNo(ctx context.Context, admissionNo string) (*Student, error) {
	return s.store.FindByAdmissionNo(ctx, admissionNo)
}

func (s *Service) Students(ctx context.Context) ([]Student, error) {
	return s.store.ListStudents(ctx)
}

func (s *Service) RecordMarks(ctx context.Context, actorID string, r ExamResult) (*ExamResult, error) {
	r.Subject = strings.TrimSpace(r.Subject)
	if r.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if r.Marks < 0 || r.Marks > 100 {
		return nil, fmt.Errorf("%w: marks must be 0-100", ErrInvalidInput)
	}
	if r.YearOfStudy < 1 || r.YearOfStudy > 3 {
		return nil, fmt.Errorf("%w: year of study must be 1-3", ErrInvalidInput)
	}
	if r.Semester < 1 || r.Semester > 2 {
		return nil, fmt.Errorf("%w: semester must be 1 or 2", ErrInvalidInput)
	}
	r.ID = ids.New()
	r.RecordedAt = s.now()
	if err := s.store.AddExamResult(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) Results(ctx context.Context, studentID string) ([]ExamResult, error) {
	return s.store.ExamResults(ctx, studentID)
}

func (s *Service) UpsertStockItem(ctx context.Context, actorID string, item StockItem) (*StockItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	if item.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if item.ID == "" {
		item.ID = ids.New()
	} else if _, err := s.store.GetStockItem(ctx, item.ID); err != nil {
		return nil, err
	}
	item.UpdatedAt = s.now()
	if err := s.store.PutStockItem(ctx, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) StockItems(ctx context.Context) ([]StockItem, error) {
	return s.store.ListStockItems(ctx)
}

func (s *Service) DeleteStockItem(ctx context.Context, id string) error {
	return s.store.DeleteStockItem(ctx, id)
}

func (s *Service) append(ctx context.Context, actorID, action string) {
	_ = s.audit.Append(ctx, &audit.Entry{
		ID:         ids.New(),
		ActorID:    actorID,
		Action:     action,
		OccurredAt: s.now(),
	})
}
