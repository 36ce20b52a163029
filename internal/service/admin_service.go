package service

import (
	"context"
	"strings"

	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
)

// AdminService handles admin account business logic.
type AdminService struct {
	adminRepo *repository.AdminRepository
	auth      *AuthService
}

// NewAdminService creates a new AdminService.
func NewAdminService(adminRepo *repository.AdminRepository, auth *AuthService) *AdminService {
	return &AdminService{adminRepo: adminRepo, auth: auth}
}

// GetByID retrieves an admin by ID.
func (s *AdminService) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	return s.adminRepo.GetByID(ctx, id)
}

// Create registers a new admin after enforcing the password policy.
func (s *AdminService) Create(ctx context.Context, username, password string) (*model.Admin, error) {
	if err := CheckPasswordPolicy(password); err != nil {
		return nil, err
	}
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &model.Admin{Username: strings.TrimSpace(username), PasswordHash: hash}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// ChangePassword verifies the current password, stores the new one and
// revokes the admin's session so every device has to log in again.
func (s *AdminService) ChangePassword(ctx context.Context, adminID int, current, next string) error {
	admin, err := s.adminRepo.GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	if err := s.auth.CheckPassword(admin.PasswordHash, current); err != nil {
		return err
	}
	if err := CheckPasswordPolicy(next); err != nil {
		return err
	}
	hash, err := s.auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.adminRepo.UpdatePassword(ctx, adminID, hash); err != nil {
		return err
	}
	return s.auth.RevokeAdminSession(ctx, adminID)
}
