package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/validator"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password does not meet the policy")
	ErrSessionInvalidated = errors.New("session invalidated")
)

// TokenType distinguishes student vs admin tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType    TokenType `json:"token_type"`
	AdminID      int       `json:"admin_id,omitempty"`      // Admin only
	StudentID    uuid.UUID `json:"student_id"`              // Student only
	ExamCategory string    `json:"exam_category,omitempty"` // Student only
}

// AdminStore is the admin account storage the auth flow depends on.
type AdminStore interface {
	GetByID(ctx context.Context, id int) (*model.Admin, error)
	GetByUsername(ctx context.Context, username string) (*model.Admin, error)
	TouchLogin(ctx context.Context, id int) error
}

// AuthService handles authentication, JWT, and admin session management.
type AuthService struct {
	cfg    *config.Config
	rdb    *redis.Client
	admins AdminStore
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, admins AdminStore) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, admins: admins, now: time.Now}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// CheckPasswordPolicy rejects passwords that are too weak to be set.
func CheckPasswordPolicy(password string) error {
	if !validator.StrongPassword(password) {
		return ErrWeakPassword
	}
	return nil
}

// GenerateStudentToken creates the JWT a student uses for the rest of their attempt.
func (s *AuthService) GenerateStudentToken(student *model.Student) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   student.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:    TokenTypeStudent,
		StudentID:    student.ID,
		ExamCategory: student.ExamCategory,
	}
	return s.sign(claims)
}

// Login checks admin credentials and issues an admin JWT. Only the most
// recently issued token of an admin stays valid.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.Admin, error) {
	admin, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := s.CheckPassword(admin.PasswordHash, password); err != nil {
		return "", nil, err
	}

	token, err := s.GenerateAdminToken(ctx, admin.ID)
	if err != nil {
		return "", nil, err
	}
	_ = s.admins.TouchLogin(ctx, admin.ID)
	return token, admin, nil
}

// GenerateAdminToken creates an admin JWT and registers its id as the admin's active session.
func (s *AuthService) GenerateAdminToken(ctx context.Context, adminID int) (string, error) {
	jti := uuid.New().String()
	now := s.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(adminID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AdminSession)),
		},
		TokenType: TokenTypeAdmin,
		AdminID:   adminID,
	}
	signed, err := s.sign(claims)
	if err != nil {
		return "", err
	}

	if err := s.rdb.Set(ctx, config.CacheKey.AdminSessionKey(adminID), jti, s.cfg.AdminSession).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return signed, nil
}

func (s *AuthService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateAdminSession checks that the token's JTI is the admin's active session.
func (s *AuthService) ValidateAdminSession(ctx context.Context, adminID int, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.AdminSessionKey(adminID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionInvalidated
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// RevokeAdminSession invalidates every outstanding token of an admin.
func (s *AuthService) RevokeAdminSession(ctx context.Context, adminID int) error {
	return s.rdb.Del(ctx, config.CacheKey.AdminSessionKey(adminID)).Err()
}
