package records

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu       sync.RWMutex
	students map[string]Student
	byAdmNo  map[string]string
	exams    map[string][]ExamResult
	stock    map[string]StockItem
}

var _ Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		students: make(map[string]Student),
		byAdmNo:  make(map[string]string),
		exams:    make(map[string][]ExamResult),
		stock:    make(map[string]StockItem),
	}
}

func (s *InMemory) CreateStudent(ctx context.Context, st *Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(st.AdmissionNo)
	if _, ok := s.byAdmNo[key]; ok {
		return ErrAdmissionTaken
	}
	s.students[st.ID] = *st
	s.byAdmNo[key] = st.ID
	return nil
}

func (s *InMemory) GetStudent(ctx context.Context, id string) (*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (s *InMemory) FindByAdmissionNo(ctx context.Context, admissionNo string) (*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAdmNo[strings.ToLower(admissionNo)]
	if !ok {
		return nil, ErrNotFound
	}
	st := s.students[id]
	return &st, nil
}

func (s *InMemory) ListStudents(ctx context.Context) ([]Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AdmissionNo < out[j].AdmissionNo })
	return out, nil
}

func (s *InMemory) DeleteStudent(ctx context.Context, id string) (*Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.students, id)
	delete(s.byAdmNo, strings.ToLower(st.AdmissionNo))
	delete(s.exams, id)
	return &st, nil
}

func (s *InMemory) AddExamResult(ctx context.Context, r *ExamResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[r.StudentID]; !ok {
		return ErrNotFound
	}
	s.exams[r.StudentID] = append(s.exams[r.StudentID], *r)
	return nil
}

func (s *InMemory) ExamResults(ctx context.Context, studentID string) ([]ExamResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.students[studentID]; !ok {
		return nil, ErrNotFound
	}
	out := append([]ExamResult(nil), s.exams[studentID]...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.YearOfStudy != b.YearOfStudy {
			return a.YearOfStudy < b.YearOfStudy
		}
		if a.Semester != b.Semester {
			return a.Semester < b.Semester
		}
		return a.Subject < b.Subject
	})
	return out, nil
}

func (s *InMemory) PutStockItem(ctx context.Context, item *StockItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[item.ID] = *item
	return nil
}

func (s *InMemory) GetStockItem(ctx context.Context, id string) (*StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.stock[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (s *InMemory) ListStockItems(ctx context.Context) ([]StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StockItem, 0, len(s.stock))
	for _, item := range s.stock {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) DeleteStockItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stock[id]; !ok {
		return ErrNotFound
	}
	delete(s.stock, id)
	return nil
}
