package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

// MonitorRepository provides data access for the live exam monitoring feature.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ActiveStudent is one row of the live monitor.
type ActiveStudent struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	ExamType        model.ExamType `json:"exam_type"`
	ExamCategory    string         `json:"exam_category"`
	StartTime       time.Time      `json:"start_time"`
	TimeRemaining   int64          `json:"time_remaining"`
	CurrentQuestion int            `json:"current_question"`
	Answered        int            `json:"answered"`
	Violations      int            `json:"violations"`
}

// GetActiveStudents returns every student still taking an exam with the
// answered count from their last persisted snapshot.
func (r *MonitorRepository) GetActiveStudents(ctx context.Context) ([]ActiveStudent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, s.exam_type, s.exam_category, s.start_time, s.time_remaining,
		        s.current_question,
		        COALESCE((SELECT COUNT(*) FROM jsonb_object_keys(es.answers)), 0)
		 FROM students s
		 LEFT JOIN exam_sessions es ON es.student_id = s.id
		 WHERE s.status = 'active'
		 ORDER BY s.start_time`)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ActiveStudent, error) {
		var a ActiveStudent
		err := row.Scan(&a.ID, &a.Name, &a.ExamType, &a.ExamCategory, &a.StartTime, &a.TimeRemaining,
			&a.CurrentQuestion, &a.Answered)
		return a, err
	})
}

// GetViolationCounts returns the number of violations recorded per active student.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT v.student_id, COUNT(*)
		 FROM exam_violations v
		 JOIN students s ON s.id = v.student_id
		 WHERE s.status = 'active'
		 GROUP BY v.student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// GetStudentViolations lists a student's violations, newest first.
func (r *MonitorRepository) GetStudentViolations(ctx context.Context, studentID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id, exam_category, kind, reason, recorded_at
		 FROM exam_violations
		 WHERE student_id = $1
		 ORDER BY recorded_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Violation, error) {
		var v model.Violation
		err := row.Scan(&v.StudentID, &v.ExamCategory, &v.Kind, &v.Reason, &v.RecordedAt)
		return v, err
	})
}
