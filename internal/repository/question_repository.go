package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, type, category, COALESCE(chapter, ''), COALESCE(character_prompt, ''),
	COALESCE(question, ''), options, correct_answer, difficulty, is_custom, created_at`

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(&q.ID, &q.Type, &q.Category, &q.Chapter, &q.Character,
		&q.Question, &q.Options, &q.CorrectAnswer, &q.Difficulty, &q.IsCustom, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()
	questions := []model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// ListByCategory returns a category's questions in a stable order: the
// built-in bank first, then custom questions by creation time.
func (r *QuestionRepository) ListByCategory(ctx context.Context, category string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE category = $1
		 ORDER BY is_custom, created_at, id`, category,
	)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// List returns questions matching the filter.
func (r *QuestionRepository) List(ctx context.Context, f model.QuestionFilter) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(` AND (question ILIKE $%d OR character_prompt ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY category, is_custom, created_at, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectQuestions(rows)
}

// GetByID retrieves a question.
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*model.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// Create inserts a question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (id, type, category, chapter, character_prompt, question, options, correct_answer, difficulty, is_custom)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)
		 RETURNING created_at`,
		q.ID, q.Type, q.Category, q.Chapter, q.Character, q.Question, q.Options, q.CorrectAnswer, q.Difficulty, q.IsCustom,
	).Scan(&q.CreatedAt)
}

// Update rewrites a custom question. Built-in rows are never touched.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET type = $2, category = $3, chapter = NULLIF($4, ''), character_prompt = NULLIF($5, ''),
		     question = NULLIF($6, ''), options = $7, correct_answer = $8, difficulty = $9
		 WHERE id = $1 AND is_custom`,
		q.ID, q.Type, q.Category, q.Chapter, q.Character, q.Question, q.Options, q.CorrectAnswer, q.Difficulty,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a custom question.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1 AND is_custom`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates the bank by type and difficulty.
func (r *QuestionRepository) Stats(ctx context.Context) (*model.QuestionStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT type, difficulty, COUNT(*), COUNT(*) FILTER (WHERE is_custom)
		 FROM questions GROUP BY type, difficulty`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &model.QuestionStats{
		ByType:       make(map[model.ExamType]int),
		ByDifficulty: make(map[model.Difficulty]int),
	}
	for rows.Next() {
		var (
			t             model.ExamType
			d             model.Difficulty
			count, custom int
		)
		if err := rows.Scan(&t, &d, &count, &custom); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.Custom += custom
		stats.ByType[t] += count
		stats.ByDifficulty[d] += count
	}
	return stats, rows.Err()
}

// UpsertBuiltin seeds the built-in bank in one batch and returns the number of rows written.
func (r *QuestionRepository) UpsertBuiltin(ctx context.Context, questions []model.Question) (int, error) {
	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(
			`INSERT INTO questions (id, type, category, chapter, character_prompt, question, options, correct_answer, difficulty, is_custom)
			 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, FALSE)
			 ON CONFLICT (id) DO UPDATE
			 SET type = EXCLUDED.type, category = EXCLUDED.category, chapter = EXCLUDED.chapter,
			     character_prompt = EXCLUDED.character_prompt, question = EXCLUDED.question,
			     options = EXCLUDED.options, correct_answer = EXCLUDED.correct_answer,
			     difficulty = EXCLUDED.difficulty, is_custom = FALSE`,
			q.ID, q.Type, q.Category, q.Chapter, q.Character, q.Question, q.Options, q.CorrectAnswer, q.Difficulty,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for range questions {
		if _, err := br.Exec(); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
