package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestRateLimiterRefills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 2, time.Minute)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.GET("/", rl.Middleware(), ok)
	hit := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w
	}

	for i := range 2 {
		if w := hit(); w.Code != http.StatusOK {
			t.Fatalf("request %d status %d", i, w.Code)
		}
	}
	w := hit()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}

	now = now.Add(time.Minute)
	if w := hit(); w.Code != http.StatusOK {
		t.Errorf("after refill status %d", w.Code)
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Error("stale visitor kept")
	}
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}, nil, nil)
}

type stubChecker struct{ err error }

func (s stubChecker) IsActive(context.Context, uuid.UUID) error { return s.err }

func TestStudentRoutes(t *testing.T) {
	auth := newAuth()
	student := &model.Student{ID: uuid.New(), Name: "Aiko", ExamCategory: "hiragana-basic"}
	token, err := auth.GenerateStudentToken(student)
	if err != nil {
		t.Fatalf("GenerateStudentToken: %v", err)
	}

	tests := []struct {
		name    string
		header  string
		checker stubChecker
		want    int
	}{
		{"no token", "", stubChecker{}, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", stubChecker{}, http.StatusUnauthorized},
		{"active", "Bearer " + token, stubChecker{}, http.StatusOK},
		{"finished", "Bearer " + token, stubChecker{service.ErrStudentInactive}, http.StatusForbidden},
		{"deleted", "Bearer " + token, stubChecker{repository.ErrNotFound}, http.StatusUnauthorized},
		{"store down", "Bearer " + token, stubChecker{errors.New("boom")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", RequireStudentJWT(auth), CheckActiveStudent(tt.checker), func(c *gin.Context) {
				if claims := GetClaims(c); claims == nil || claims.StudentID != student.ID {
					t.Errorf("claims = %+v", claims)
				}
				ok(c)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestStudentTokenRejectedOnAdminRoutes(t *testing.T) {
	auth := newAuth()
	token, err := auth.GenerateStudentToken(&model.Student{ID: uuid.New()})
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.GET("/", RequireAdminJWT(auth), ok)
	req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status %d", w.Code)
	}
}

func TestBrotli(t *testing.T) {
	body := strings.Repeat("ひらがな ", 500)
	r := gin.New()
	cfg := DefaultBrotliConfig
	cfg.Skipper = SkipPaths("/raw")
	r.Use(BrotliWithConfig(cfg))
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/raw", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/small", ok)
	r.GET("/sheet", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte(body))
	})

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip, br")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/big")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("big response not compressed: %v", w.Header())
	}
	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil || string(plain) != body {
		t.Fatalf("decompressed body mismatch: %v", err)
	}

	if w := get("/raw"); w.Header().Get("Content-Encoding") != "" || w.Body.String() != body {
		t.Error("skipped path was compressed")
	}
	if w := get("/small"); w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Error("small response was compressed")
	}
	if w := get("/sheet"); w.Header().Get("Content-Encoding") != "" || w.Body.String() != body {
		t.Error("spreadsheet was compressed again")
	}
}
