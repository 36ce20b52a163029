package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/scoring"
)

// ResultRepository handles exam result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

const resultColumns = `id, student_id, student_name, exam_type, exam_category, score, total_questions,
	time_spent, timed_out, answers, completed_at`

func scanResult(row pgx.Row) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := row.Scan(&res.ID, &res.StudentID, &res.StudentName, &res.ExamType, &res.ExamCategory,
		&res.Score, &res.TotalQuestions, &res.TimeSpent, &res.TimedOut, &res.Answers, &res.CompletedAt)
	if err != nil {
		return nil, err
	}
	res.Percentage = scoring.Percentage(res.Score, res.TotalQuestions)
	res.Passed = scoring.Passed(res.Percentage)
	return res, nil
}

// Create stores a result and assigns its identity. A student has at most
// one result: when one already exists its identity is returned instead and
// created is false, so a retried completion never produces a second row.
func (r *ResultRepository) Create(ctx context.Context, res *model.ExamResult) (created bool, err error) {
	answers := res.Answers
	if answers == nil {
		answers = []model.AnswerDetail{}
	}
	err = r.pool.QueryRow(ctx,
		`WITH ins AS (
			INSERT INTO exam_results (student_id, student_name, exam_type, exam_category, score,
			                          total_questions, time_spent, timed_out, answers, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (student_id) DO NOTHING
			RETURNING id
		)
		SELECT id, TRUE FROM ins
		UNION ALL
		SELECT id, FALSE FROM exam_results WHERE student_id = $1
		LIMIT 1`,
		res.StudentID, res.StudentName, res.ExamType, res.ExamCategory, res.Score,
		res.TotalQuestions, res.TimeSpent, res.TimedOut, answers, res.CompletedAt,
	).Scan(&res.ID, &created)
	return created, err
}

func resultWhere(f model.ResultFilter) (string, []any) {
	where := ` WHERE 1=1`
	var args []any
	if f.ExamType != "" {
		args = append(args, f.ExamType)
		where += fmt.Sprintf(` AND exam_type = $%d`, len(args))
	}
	if f.ExamCategory != "" {
		args = append(args, f.ExamCategory)
		where += fmt.Sprintf(` AND exam_category = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(` AND student_name ILIKE $%d`, len(args))
	}
	return where, args
}

func collectResults(rows pgx.Rows) ([]model.ExamResult, error) {
	defer rows.Close()
	results := []model.ExamResult{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// List returns results newest first with pagination.
func (r *ResultRepository) List(ctx context.Context, f model.ResultFilter, page, perPage int) ([]model.ExamResult, int, error) {
	where, args := resultWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_results`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + resultColumns + ` FROM exam_results` + where +
		fmt.Sprintf(` ORDER BY completed_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset(page, perPage))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	results, err := collectResults(rows)
	return results, total, err
}

// ListAll returns every matching result, newest first. Used by exports.
func (r *ResultRepository) ListAll(ctx context.Context, f model.ResultFilter) ([]model.ExamResult, error) {
	where, args := resultWhere(f)
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+` FROM exam_results`+where+` ORDER BY completed_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	return collectResults(rows)
}

// GetByStudent returns a student's result.
func (r *ResultRepository) GetByStudent(ctx context.Context, studentID uuid.UUID) (*model.ExamResult, error) {
	res, err := scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM exam_results WHERE student_id = $1`, studentID))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// Delete removes a result.
func (r *ResultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exam_results WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats summarises all results. Pass uses the same threshold as scoring.
func (r *ResultRepository) Stats(ctx context.Context) (*model.ResultStats, error) {
	stats := &model.ResultStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(ROUND(100.0 * score / NULLIF(total_questions, 0))), 0),
		        COUNT(*) FILTER (WHERE total_questions > 0 AND ROUND(100.0 * score / total_questions) >= $1)
		 FROM exam_results`, scoring.PassThreshold,
	).Scan(&stats.Total, &stats.AveragePercentage, &stats.Passed)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
