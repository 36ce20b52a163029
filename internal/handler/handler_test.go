package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
	"github.com/lpkmns/nihongo-exam/internal/validator"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type testEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ─── Harness ────────────────────────────────────────────────────────────────

type harness struct {
	cfg        *config.Config
	tokens     *service.TokenService
	auth       *service.AuthService
	sessions   *service.ExamSessionService
	students   *memStudents
	results    *memResults
	violations *memViolations
	registry   *engine.Registry
}

func newHarness(t *testing.T, codes ...string) *harness {
	t.Helper()
	rdb := newRedis(t)
	nop := zerolog.Nop()
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTExpiry:        time.Hour,
		DefaultTimeLimit: 30 * time.Minute,
		AutosaveEvery:    10 * time.Second,
		WarningDuration:  3 * time.Second,
	}

	toks := make([]model.Token, len(codes))
	for i, code := range codes {
		toks[i] = hiraganaToken(code)
	}

	h := &harness{
		cfg:        cfg,
		students:   newMemStudents(),
		results:    &memResults{},
		violations: &memViolations{},
	}
	h.tokens = service.NewTokenService(newMemTokens(toks...), newMemAdmissions(), nop)
	h.auth = service.NewAuthService(cfg, rdb, nil)

	ctx, cancel := context.WithCancel(context.Background())
	h.registry = engine.NewRegistry(ctx, nop)
	t.Cleanup(func() {
		h.registry.CloseAll(context.Background())
		cancel()
	})

	questions := service.NewQuestionService(noQuestions{}, nop)
	gw := service.NewExamGateway(questions, h.students, newMemSessions(), h.results, rdb, nil, nop)
	h.sessions = service.NewExamSessionService(cfg, gw, h.students, h.tokens, h.auth, newMemMarker(), h.registry, nil, nop)
	return h
}

func (h *harness) portal() *gin.Engine {
	r := gin.New()
	p := NewStudentPortalHandler(h.tokens, h.sessions)
	r.POST("/token/validate", p.ValidateToken)
	r.POST("/exams/start", p.StartExam)
	r.GET("/resume", p.Resume)
	return r
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{"route not found", repository.ErrNotFound, http.StatusNotFound, response.ErrResultNotFound},
		{"wrapped not found", errors.Join(errors.New("lookup"), repository.ErrNotFound), http.StatusNotFound, response.ErrResultNotFound},
		{"no live session", engine.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
		{"used token", repository.ErrTokenUsed, http.StatusBadRequest, response.ErrExamTokenInvalid},
		{"no device", service.ErrDeviceRequired, http.StatusBadRequest, response.ErrDeviceRequired},
		{"no resume", service.ErrNoResume, http.StatusNotFound, response.ErrNoResume},
		{"finished exam", engine.ErrNotActive, http.StatusConflict, response.ErrStudentInactive},
		{"double submit", engine.ErrSubmitInProgress, http.StatusConflict, response.ErrSubmitInProgress},
		{"scoring failed", engine.ErrCompletionFailed, http.StatusServiceUnavailable, response.ErrSubmitFailed},
		{"bad option", engine.ErrInvalidOption, http.StatusBadRequest, response.ErrInvalidAnswer},
		{"bad index", engine.ErrInvalidQuestionIndex, http.StatusBadRequest, response.ErrInvalidNavigation},
		{"builtin question", service.ErrBuiltinQuestion, http.StatusForbidden, response.ErrBuiltinQuestion},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, response.ErrConnection},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := translateError(tt.err, response.ErrResultNotFound)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("translateError(%v) = %d %s, want %d %s", tt.err, status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestListCategories(t *testing.T) {
	r := gin.New()
	r.GET("/categories", ListCategories)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/categories?type=hiragana", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var body struct {
		Categories []model.ExamCategory `json:"categories"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Categories) == 0 {
		t.Fatal("no hiragana categories")
	}
	for _, c := range body.Categories {
		if c.Type != model.ExamTypeHiragana {
			t.Errorf("category %s has type %s", c.ID, c.Type)
		}
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/categories?type=romaji", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d", w.Code)
	}
}

func TestValidateTokenEndpoint(t *testing.T) {
	h := newHarness(t, "ABCD1234")
	r := h.portal()

	validate := func(body any) (*httptest.ResponseRecorder, model.TokenValidation) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, jsonRequest(http.MethodPost, "/token/validate", body))
		var v model.TokenValidation
		if w.Code == http.StatusOK {
			_ = json.Unmarshal(decode(t, w).Data, &v)
		}
		return w, v
	}

	w, v := validate(map[string]string{"token": " abcd1234 "})
	if w.Code != http.StatusOK || !v.Valid || v.ExamCategory != "hiragana-basic" {
		t.Fatalf("first validation: %d %+v", w.Code, v)
	}

	w, v = validate(map[string]string{"token": "ABCD1234"})
	if w.Code != http.StatusOK || v.Valid {
		t.Fatalf("second validation: %d %+v", w.Code, v)
	}

	w, _ = validate(map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing token status = %d", w.Code)
	}
	env := decode(t, w)
	if env.Error == nil || env.Error.Code != string(response.ErrValidation) || env.Error.Fields["token"] == "" {
		t.Errorf("missing token error = %+v", env.Error)
	}
}

func TestStartExamEndpoint(t *testing.T) {
	h := newHarness(t, "ABCD1234")
	r := h.portal()
	ctx := context.Background()

	if v, err := h.tokens.Validate(ctx, "ABCD1234"); err != nil || !v.Valid {
		t.Fatalf("Validate = %+v, %v", v, err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/exams/start", map[string]string{"token": "ABCD1234", "name": "Aiko"}))
	if w.Code != http.StatusBadRequest || decode(t, w).Error.Code != string(response.ErrDeviceRequired) {
		t.Fatalf("start without device: %d %s", w.Code, w.Body)
	}

	req := jsonRequest(http.MethodPost, "/exams/start", map[string]string{"token": "ABCD1234", "name": "Aiko"})
	req.Header.Set(HeaderDeviceID, "dev-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("start status %d: %s", w.Code, w.Body)
	}
	var started struct {
		Token   string `json:"token"`
		Session struct {
			State     string                     `json:"state"`
			Questions []model.QuestionForStudent `json:"questions"`
		} `json:"session"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &started); err != nil {
		t.Fatal(err)
	}
	if started.Token == "" || started.Session.State != "active" || len(started.Session.Questions) == 0 {
		t.Fatalf("started = %+v", started)
	}

	req = httptest.NewRequest(http.MethodGet, "/resume", nil)
	req.Header.Set(HeaderDeviceID, "dev-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("resume status %d: %s", w.Code, w.Body)
	}

	req = httptest.NewRequest(http.MethodGet, "/resume", nil)
	req.Header.Set(HeaderDeviceID, "dev-2")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound || decode(t, w).Error.Code != string(response.ErrNoResume) {
		t.Errorf("resume on another device: %d %s", w.Code, w.Body)
	}
}

func TestExportResults(t *testing.T) {
	results := &memResults{results: []model.ExamResult{{
		ID:             uuid.New(),
		StudentID:      uuid.New(),
		StudentName:    `Sato "Ken"`,
		ExamType:       model.ExamTypeHiragana,
		ExamCategory:   "hiragana-basic",
		Score:          8,
		TotalQuestions: 10,
		TimeSpent:      90_000,
		CompletedAt:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}}}
	h := NewResultHandler(service.NewResultService(results, time.UTC, zerolog.Nop()))
	r := gin.New()
	r.GET("/export", h.ExportResults)

	t.Run("summary", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/export?format=summary", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status %d: %s", w.Code, w.Body)
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("content type %q", ct)
		}
		if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, `attachment; filename="exam_results_`) {
			t.Errorf("content disposition %q", cd)
		}
		body := w.Body.String()
		if !strings.HasPrefix(body, `"Student Name"`) {
			t.Errorf("missing header row:\n%s", body)
		}
		if !strings.Contains(body, `"Sato ""Ken"""`) {
			t.Errorf("name not escaped:\n%s", body)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/export?format=pdf", nil))
		if w.Code != http.StatusBadRequest || decode(t, w).Error.Code != string(response.ErrExportFormat) {
			t.Errorf("status %d: %s", w.Code, w.Body)
		}
	})

	t.Run("query failure is JSON", func(t *testing.T) {
		results.listErr = context.DeadlineExceeded
		defer func() { results.listErr = nil }()

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/export", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status %d", w.Code)
		}
		if w.Header().Get("Content-Disposition") != "" {
			t.Error("failed export still sent as a download")
		}
	})
}

func TestTokenAdminEndpoints(t *testing.T) {
	svc := service.NewTokenService(newMemTokens(), newMemAdmissions(), zerolog.Nop())
	h := NewTokenHandler(svc)
	r := gin.New()
	r.GET("/tokens", h.ListTokens)
	r.POST("/tokens", h.GenerateTokens)
	r.GET("/tokens/stats", h.GetStats)
	r.POST("/tokens/:code/disable", h.DisableToken)

	generate := func(body map[string]any) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, jsonRequest(http.MethodPost, "/tokens", body))
		return w
	}

	w := generate(map[string]any{"exam_type": "hiragana", "exam_category": "hiragana-basic", "difficulty": "beginner", "count": 3})
	if w.Code != http.StatusCreated {
		t.Fatalf("generate status %d: %s", w.Code, w.Body)
	}
	var created struct {
		Tokens []model.Token `json:"tokens"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &created); err != nil || len(created.Tokens) != 3 {
		t.Fatalf("created = %+v, %v", created, err)
	}

	rejects := []struct {
		name string
		body map[string]any
		code response.ErrCode
	}{
		{"category of another type", map[string]any{"exam_type": "katakana", "exam_category": "hiragana-basic", "difficulty": "beginner", "count": 1}, response.ErrCategoryMismatch},
		{"unknown category", map[string]any{"exam_type": "hiragana", "exam_category": "hiragana-none", "difficulty": "beginner", "count": 1}, response.ErrUnknownCategory},
		{"zero count", map[string]any{"exam_type": "hiragana", "exam_category": "hiragana-basic", "difficulty": "beginner", "count": 0}, response.ErrValidation},
		{"bad difficulty", map[string]any{"exam_type": "hiragana", "exam_category": "hiragana-basic", "difficulty": "expert", "count": 1}, response.ErrValidation},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			w := generate(tt.body)
			if w.Code != http.StatusBadRequest || decode(t, w).Error.Code != string(tt.code) {
				t.Errorf("status %d: %s", w.Code, w.Body)
			}
		})
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tokens/"+created.Tokens[0].Code+"/disable", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("disable status %d: %s", w.Code, w.Body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tokens/stats", nil))
	var stats model.TokenStats
	if err := json.Unmarshal(decode(t, w).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Used != 1 || stats.Available != 2 {
		t.Errorf("stats = %+v", stats)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tokens?used=maybe", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad used filter status %d", w.Code)
	}
}
