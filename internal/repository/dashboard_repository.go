package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/scoring"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// DashboardCounts are the headline numbers on the dashboard.
type DashboardCounts struct {
	Students        int `json:"students"`
	ActiveStudents  int `json:"active_students"`
	Results         int `json:"results"`
	Questions       int `json:"questions"`
	TokensAvailable int `json:"tokens_available"`
	Violations      int `json:"violations"`
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (*DashboardCounts, error) {
	c := &DashboardCounts{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM students),
			(SELECT COUNT(*) FROM students WHERE status = 'active'),
			(SELECT COUNT(*) FROM exam_results),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM exam_tokens WHERE used = FALSE),
			(SELECT COUNT(*) FROM exam_violations)`,
	).Scan(&c.Students, &c.ActiveStudents, &c.Results, &c.Questions, &c.TokensAvailable, &c.Violations)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CategoryStat is the running aggregate for one exam category.
type CategoryStat struct {
	ExamCategory      string    `json:"exam_category"`
	Attempts          int       `json:"attempts"`
	AveragePercentage float64   `json:"average_percentage"`
	Passes            int       `json:"passes"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetCategoryStats reads the category_stats aggregate maintained by the stats worker.
func (r *DashboardRepository) GetCategoryStats(ctx context.Context) ([]CategoryStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_category, attempts,
		        CASE WHEN attempts > 0 THEN total_percentage::float8 / attempts ELSE 0 END,
		        passes, updated_at
		 FROM category_stats
		 ORDER BY attempts DESC, exam_category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []CategoryStat{}
	for rows.Next() {
		var s CategoryStat
		if err := rows.Scan(&s.ExamCategory, &s.Attempts, &s.AveragePercentage, &s.Passes, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// DashboardRecentResult is the compact row shown in the recent results panel.
type DashboardRecentResult struct {
	ID           uuid.UUID      `json:"id"`
	StudentName  string         `json:"student_name"`
	ExamType     model.ExamType `json:"exam_type"`
	ExamCategory string         `json:"exam_category"`
	Score        int            `json:"score"`
	Total        int            `json:"total_questions"`
	Percentage   int            `json:"percentage"`
	Passed       bool           `json:"passed"`
	CompletedAt  time.Time      `json:"completed_at"`
}

// GetRecentResults retrieves the last N completed attempts.
func (r *DashboardRepository) GetRecentResults(ctx context.Context, limit int) ([]DashboardRecentResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_name, exam_type, exam_category, score, total_questions, completed_at
		 FROM exam_results
		 ORDER BY completed_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DashboardRecentResult, error) {
		var d DashboardRecentResult
		err := row.Scan(&d.ID, &d.StudentName, &d.ExamType, &d.ExamCategory, &d.Score, &d.Total, &d.CompletedAt)
		d.Percentage = scoring.Percentage(d.Score, d.Total)
		d.Passed = scoring.Passed(d.Percentage)
		return d, err
	})
}
