package records

import "context"

// Store persists students, exam results and stores inventory.
type Store interface {
	CreateStudent(ctx context.Context, st *Student) error
	GetStudent(ctx context.Context, id string) (*Student, error)
	FindByAdmissionNo(ctx context.Context, admissionNo string) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	DeleteStudent(ctx context.Context, id string) (*Student, error)

	AddExamResult(ctx context.Context, r *ExamResult) error
	// ExamResults returns a student's marks ordered by year of study,
	// semester and subject so callers can group them for display.
	ExamResults(ctx context.Context, studentID string) ([]ExamResult, error)

	PutStockItem(ctx context.Context, item *StockItem) error
	GetStockItem(ctx context.Context, id string) (*StockItem, error)
	ListStockItems(ctx context.Context) ([]StockItem, error)
	DeleteStockItem(ctx context.Context, id string) error
}
