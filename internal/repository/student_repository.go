package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

var ErrTokenAlreadyRedeemed = errors.New("a student already exists for this token")

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `id, name, token, exam_type, exam_category, start_time, end_time,
	status, time_remaining, current_question, created_at`

func scanStudent(row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	err := row.Scan(&s.ID, &s.Name, &s.Token, &s.ExamType, &s.ExamCategory, &s.StartTime, &s.EndTime,
		&s.Status, &s.TimeRemaining, &s.CurrentQuestion, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetByToken retrieves the student who redeemed a token.
func (r *StudentRepository) GetByToken(ctx context.Context, token string) (*model.Student, error) {
	s, err := scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE token = $1`, token))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// List retrieves students newest first with pagination and optional filters.
func (r *StudentRepository) List(ctx context.Context, f model.StudentFilter, page, perPage int) ([]model.Student, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.ExamType != "" {
		args = append(args, f.ExamType)
		where += fmt.Sprintf(` AND exam_type = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR token ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + studentColumns + ` FROM students` + where +
		fmt.Sprintf(` ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset(page, perPage))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		students = append(students, *s)
	}
	return students, total, rows.Err()
}

// Create inserts a new student and assigns its identity.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (name, token, exam_type, exam_category, start_time, status, time_remaining, current_question)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		s.Name, s.Token, s.ExamType, s.ExamCategory, s.StartTime, s.Status, s.TimeRemaining, s.CurrentQuestion,
	).Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrTokenAlreadyRedeemed
	}
	return err
}

// Update writes the mutable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, s *model.Student) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE students
		 SET status = $2, end_time = $3, time_remaining = $4, current_question = $5
		 WHERE id = $1`,
		s.ID, s.Status, s.EndTime, s.TimeRemaining, s.CurrentQuestion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus changes only the status column. A completed student is never
// moved out of completed.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.StudentStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE students SET status = $2 WHERE id = $1 AND status <> 'completed'`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrStudentCompleted
	}
	return ErrNotFound
}

// Delete removes a student together with their session, violations and result.
func (r *StudentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		`DELETE FROM exam_sessions WHERE student_id = $1`,
		`DELETE FROM exam_violations WHERE student_id = $1`,
		`DELETE FROM exam_results WHERE student_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// CountByStatus returns how many students are in each status.
func (r *StudentRepository) CountByStatus(ctx context.Context) (map[model.StudentStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM students GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.StudentStatus]int)
	for rows.Next() {
		var status model.StudentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
