package records

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// PGStore implements Store using PostgreSQL. Exam results and the fee
// ledger cascade from students via foreign keys, so DeleteStudent only
// touches the students table.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const studentColumns = `id, name, admission_no, id_birth_no, phone, sex, course,
	last_school, parent_contacts, religion, year_enrolled, created_at`

func (s *PGStore) CreateStudent(ctx context.Context, st *Student) error {
	_, err := s.db.ExecContext(ctx, `
		insert into students(`+studentColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, st.ID, st.Name, st.AdmissionNo, st.IDBirthNo, st.Phone, st.Sex, st.Course,
		st.LastSchool, st.ParentContacts, st.Religion, st.YearEnrolled, st.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAdmissionTaken
	}
	return err
}

func (s *PGStore) GetStudent(ctx context.Context, id string) (*Student, error) {
	return s.findStudent(ctx, `where id=$1`, id)
}

func (s *PGStore) FindByAdmissionNo(ctx context.Context, admissionNo string) (*Student, error) {
	return s.findStudent(ctx, `where lower(admission_no)=lower($1)`, admissionNo)
}

func (s *PGStore) findStudent(ctx context.Context, where string, arg any) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `select `+studentColumns+` from students `+where, arg)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return st, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*Student, error) {
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.AdmissionNo, &st.IDBirthNo, &st.Phone, &st.Sex,
		&st.Course, &st.LastSchool, &st.ParentContacts, &st.Religion, &st.YearEnrolled, &st.CreatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PGStore) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+studentColumns+` from students order by admission_no asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteStudent(ctx context.Context, id string) (*Student, error) {
	st, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `delete from students where id=$1`, id); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PGStore) AddExamResult(ctx context.Context, r *ExamResult) error {
	if _, err := s.GetStudent(ctx, r.StudentID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		insert into exam_results(id, student_id, subject, marks, year_of_study, semester, recorded_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, r.ID, r.StudentID, r.Subject, r.Marks, r.YearOfStudy, r.Semester, r.RecordedAt)
	return err
}

func (s *PGStore) ExamResults(ctx context.Context, studentID string) ([]ExamResult, error) {
	if _, err := s.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, student_id, subject, marks, year_of_study, semester, recorded_at
		from exam_results
		where student_id=$1
		order by year_of_study asc, semester asc, subject asc
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExamResult
	for rows.Next() {
		var r ExamResult
		if err := rows.Scan(&r.ID, &r.StudentID, &r.Subject, &r.Marks,
			&r.YearOfStudy, &r.Semester, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) PutStockItem(ctx context.Context, item *StockItem) error {
	_, err := s.db.ExecContext(ctx, `
		insert into stock_items(id, name, quantity, category, updated_at)
		values ($1,$2,$3,$4,$5)
		on conflict (id) do update
		set name=excluded.name, quantity=excluded.quantity,
		    category=excluded.category, updated_at=excluded.updated_at
	`, item.ID, item.Name, item.Quantity, item.Category, item.UpdatedAt)
	return err
}

func (s *PGStore) GetStockItem(ctx context.Context, id string) (*StockItem, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, quantity, category, updated_at from stock_items where id=$1`, id)
	var item StockItem
	if err := row.Scan(&item.ID, &item.Name, &item.Quantity, &item.Category, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *PGStore) ListStockItems(ctx context.Context) ([]StockItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, quantity, category, updated_at from stock_items order by name asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockItem
	for rows.Next() {
		var item StockItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Quantity, &item.Category, &item.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteStockItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from stock_items where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
