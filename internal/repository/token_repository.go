package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

// TokenRepository handles exam token data access.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

const tokenColumns = `token, exam_type, exam_category, difficulty, created_at, used, used_at`

func scanToken(row pgx.Row) (*model.Token, error) {
	t := &model.Token{}
	if err := row.Scan(&t.Code, &t.ExamType, &t.ExamCategory, &t.Difficulty, &t.CreatedAt, &t.Used, &t.UsedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// Consume marks an unused token as used and returns it. The update is
// conditioned on used = FALSE, so of any number of concurrent callers for
// the same code at most one gets the row back; the rest see ErrTokenUsed.
func (r *TokenRepository) Consume(ctx context.Context, code string) (*model.Token, error) {
	t, err := scanToken(r.pool.QueryRow(ctx,
		`UPDATE exam_tokens SET used = TRUE, used_at = NOW()
		 WHERE token = $1 AND used = FALSE
		 RETURNING `+tokenColumns, code,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTokenUsed
		}
		return nil, err
	}
	return t, nil
}

// Create inserts a new token.
func (r *TokenRepository) Create(ctx context.Context, t *model.Token) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_tokens (token, exam_type, exam_category, difficulty)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		t.Code, t.ExamType, t.ExamCategory, t.Difficulty,
	).Scan(&t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

// List returns tokens newest first, optionally filtered.
func (r *TokenRepository) List(ctx context.Context, f model.TokenFilter, page, perPage int) ([]model.Token, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.Used != nil {
		args = append(args, *f.Used)
		where += fmt.Sprintf(` AND used = $%d`, len(args))
	}
	if f.ExamType != "" {
		args = append(args, f.ExamType)
		where += fmt.Sprintf(` AND exam_type = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_tokens`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + tokenColumns + ` FROM exam_tokens` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset(page, perPage))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tokens := []model.Token{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, 0, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, total, rows.Err()
}

// Delete removes a token.
func (r *TokenRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exam_tokens WHERE token = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Disable burns an unused token without admitting anyone.
func (r *TokenRepository) Disable(ctx context.Context, code string) error {
	_, err := r.Consume(ctx, code)
	if err == ErrTokenUsed {
		return ErrNotFound
	}
	return err
}

// Stats aggregates token usage by type and difficulty.
func (r *TokenRepository) Stats(ctx context.Context) (*model.TokenStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_type, difficulty, COUNT(*), COUNT(*) FILTER (WHERE used)
		 FROM exam_tokens
		 GROUP BY exam_type, difficulty`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &model.TokenStats{
		ByType:       make(map[model.ExamType]int),
		ByDifficulty: make(map[model.Difficulty]int),
	}
	for rows.Next() {
		var (
			t          model.ExamType
			d          model.Difficulty
			total, use int
		)
		if err := rows.Scan(&t, &d, &total, &use); err != nil {
			return nil, err
		}
		stats.Total += total
		stats.Used += use
		stats.ByType[t] += total
		stats.ByDifficulty[d] += total
	}
	stats.Available = stats.Total - stats.Used
	return stats, rows.Err()
}
