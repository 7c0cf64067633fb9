package records

import (
	"errors"
	"time"
)

// Student is one admitted student record.
type Student struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	AdmissionNo    string    `json:"admission_no"`
	IDBirthNo      string    `json:"id_birth_no"`
	Phone          string    `json:"phone"`
	Sex            string    `json:"sex"`
	Course         string    `json:"course"`
	LastSchool     string    `json:"last_school"`
	ParentContacts string    `json:"parent_contacts"`
	Religion       string    `json:"religion"`
	YearEnrolled   int       `json:"year_enrolled"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExamResult is one subject mark for a student.
type ExamResult struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Subject     string    `json:"subject"`
	Marks       int       `json:"marks"`
	YearOfStudy int       `json:"year_of_study"`
	Semester    int       `json:"semester"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// StockItem is one stores inventory line.
type StockItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNotFound       = errors.New("records: not found")
	ErrInvalidInput   = errors.New("records: invalid input")
	ErrAdmissionTaken = errors.New("records: admission number already used")
)
