package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type memAdmins struct {
	admins  map[string]*model.Admin
	touched int
}

func (m *memAdmins) GetByID(_ context.Context, id int) (*model.Admin, error) {
	for _, a := range m.admins {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAdmins) GetByUsername(_ context.Context, username string) (*model.Admin, error) {
	a, ok := m.admins[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func (m *memAdmins) TouchLogin(context.Context, int) error {
	m.touched++
	return nil
}

func newAuth(t *testing.T) (*AuthService, *memAdmins) {
	t.Helper()
	_, rdb := newRedis(t)
	cfg := &config.Config{
		JWTSecret:    "test-secret",
		JWTExpiry:    time.Hour,
		AdminSession: 8 * time.Hour,
		BcryptCost:   bcrypt.MinCost,
	}
	admins := &memAdmins{admins: map[string]*model.Admin{}}
	svc := NewAuthService(cfg, rdb, admins)

	hash, err := svc.HashPassword("Sensei123")
	if err != nil {
		t.Fatal(err)
	}
	admins.admins["sensei"] = &model.Admin{ID: 7, Username: "sensei", PasswordHash: hash}
	return svc, admins
}

func TestAdminLogin(t *testing.T) {
	svc, admins := newAuth(t)
	ctx := context.Background()

	tests := []struct {
		name, user, pass string
		wantErr          error
	}{
		{"unknown user", "nobody", "Sensei123", ErrInvalidCredentials},
		{"wrong password", "sensei", "sensei123", ErrInvalidCredentials},
		{"valid", "sensei", "Sensei123", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, admin, err := svc.Login(ctx, tt.user, tt.pass)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			claims, err := svc.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken: %v", err)
			}
			if claims.TokenType != TokenTypeAdmin || claims.AdminID != admin.ID {
				t.Errorf("claims = %+v", claims)
			}
			if err := svc.ValidateAdminSession(ctx, claims.AdminID, claims.ID); err != nil {
				t.Errorf("fresh session rejected: %v", err)
			}
		})
	}
	if admins.touched != 1 {
		t.Errorf("TouchLogin called %d times", admins.touched)
	}
}

func TestAdminSessionSingleDevice(t *testing.T) {
	svc, _ := newAuth(t)
	ctx := context.Background()

	first, _, err := svc.Login(ctx, "sensei", "Sensei123")
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := svc.Login(ctx, "sensei", "Sensei123")
	if err != nil {
		t.Fatal(err)
	}

	c1, _ := svc.ValidateToken(first)
	c2, _ := svc.ValidateToken(second)
	if err := svc.ValidateAdminSession(ctx, c1.AdminID, c1.ID); !errors.Is(err, ErrSessionInvalidated) {
		t.Errorf("older token = %v, want ErrSessionInvalidated", err)
	}
	if err := svc.ValidateAdminSession(ctx, c2.AdminID, c2.ID); err != nil {
		t.Errorf("newest token = %v", err)
	}

	if err := svc.RevokeAdminSession(ctx, c2.AdminID); err != nil {
		t.Fatal(err)
	}
	if err := svc.ValidateAdminSession(ctx, c2.AdminID, c2.ID); !errors.Is(err, ErrSessionInvalidated) {
		t.Errorf("revoked token = %v", err)
	}
}

func TestStudentTokenRoundTrip(t *testing.T) {
	svc, _ := newAuth(t)
	st := &model.Student{ID: uuid.New(), ExamCategory: "kanji-basic"}

	token, err := svc.GenerateStudentToken(st)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenType != TokenTypeStudent || claims.StudentID != st.ID || claims.ExamCategory != "kanji-basic" {
		t.Errorf("claims = %+v", claims)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("expired student token accepted")
	}
}

func TestPasswordPolicy(t *testing.T) {
	for pw, ok := range map[string]bool{
		"Sensei123": true,
		"sensei123": false,
		"SENSEI123": false,
		"Senseiabc": false,
		"Se1":       false,
	} {
		err := CheckPasswordPolicy(pw)
		if (err == nil) != ok {
			t.Errorf("CheckPasswordPolicy(%q) = %v", pw, err)
		}
	}
}
