package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

// AdminRepository handles admin account data access.
type AdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository creates a new AdminRepository.
func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

// GetByID retrieves an admin by ID.
func (r *AdminRepository) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, last_login, created_at
		 FROM admin_users WHERE id = $1`, id,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.LastLogin, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// GetByUsername retrieves an admin by their unique username.
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	a := &model.Admin{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, last_login, created_at
		 FROM admin_users WHERE username = $1`, username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.LastLogin, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// Create inserts a new admin.
func (r *AdminRepository) Create(ctx context.Context, a *model.Admin) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO admin_users (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		a.Username, a.PasswordHash,
	).Scan(&a.ID, &a.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUsername
	}
	return err
}

// UpdatePassword replaces an admin's password hash.
func (r *AdminRepository) UpdatePassword(ctx context.Context, id int, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admin_users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLogin records a successful login.
func (r *AdminRepository) TouchLogin(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `UPDATE admin_users SET last_login = NOW() WHERE id = $1`, id)
	return err
}
