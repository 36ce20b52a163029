package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/catalog"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownCategory  = errors.New("unknown exam category")
	ErrCategoryMismatch = errors.New("exam type does not match the category")
	ErrTokenGenerate    = errors.New("could not generate a unique token")
)

const (
	tokenLength   = 8
	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// maxCollisionRetries bounds attempts per code when the random draw collides.
	maxCollisionRetries = 5
)

// TokenStore is the durable token table.
type TokenStore interface {
	Consume(ctx context.Context, code string) (*model.Token, error)
	Create(ctx context.Context, t *model.Token) error
	List(ctx context.Context, f model.TokenFilter, page, perPage int) ([]model.Token, int, error)
	Delete(ctx context.Context, code string) error
	Disable(ctx context.Context, code string) error
	Stats(ctx context.Context) (*model.TokenStats, error)
}

// AdmissionStore holds the ticket between a successful validation and the exam start.
type AdmissionStore interface {
	Issue(ctx context.Context, t *model.Token) error
	Redeem(ctx context.Context, code string) (*model.Token, error)
	Restore(ctx context.Context, t *model.Token) error
}

// TokenService handles single-use exam credentials.
type TokenService struct {
	tokens     TokenStore
	admissions AdmissionStore
	log        zerolog.Logger
}

// NewTokenService creates a new TokenService.
func NewTokenService(tokens TokenStore, admissions AdmissionStore, log zerolog.Logger) *TokenService {
	return &TokenService{
		tokens:     tokens,
		admissions: admissions,
		log:        log.With().Str("component", "token_service").Logger(),
	}
}

// NormalizeToken trims and upper-cases a candidate code.
func NormalizeToken(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate consumes a token. Unknown and already used tokens both produce
// {valid: false} and no error; only storage failures are errors. A valid
// token leaves an admission ticket that StartExam redeems.
func (s *TokenService) Validate(ctx context.Context, code string) (*model.TokenValidation, error) {
	code = NormalizeToken(code)
	if code == "" {
		return &model.TokenValidation{Valid: false}, nil
	}

	tok, err := s.tokens.Consume(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrTokenUsed) {
			return &model.TokenValidation{Valid: false}, nil
		}
		return nil, fmt.Errorf("consume token: %w", err)
	}

	if err := s.admissions.Issue(ctx, tok); err != nil {
		// The token is spent but unusable; an admin has to issue a new one.
		s.log.Error().Err(err).Str("token", code).Msg("Token consumed but admission ticket not stored")
		return nil, fmt.Errorf("issue admission: %w", err)
	}

	v := &model.TokenValidation{
		Valid:        true,
		ExamType:     tok.ExamType,
		ExamCategory: tok.ExamCategory,
		Difficulty:   tok.Difficulty,
	}
	if c, ok := catalog.Lookup(tok.ExamCategory); ok {
		v.Category = &c
	}
	return v, nil
}

// Generate creates req.Count fresh tokens bound to one exam configuration.
func (s *TokenService) Generate(ctx context.Context, req model.GenerateTokensRequest) ([]model.Token, error) {
	c, ok := catalog.Lookup(req.ExamCategory)
	if !ok {
		return nil, ErrUnknownCategory
	}
	if c.Type != req.ExamType {
		return nil, ErrCategoryMismatch
	}

	out := make([]model.Token, 0, req.Count)
	for range req.Count {
		t, err := s.createOne(ctx, req)
		if err != nil {
			return out, err
		}
		out = append(out, *t)
	}

	s.log.Info().
		Int("count", len(out)).
		Str("exam_category", req.ExamCategory).
		Msg("Tokens generated")
	return out, nil
}

func (s *TokenService) createOne(ctx context.Context, req model.GenerateTokensRequest) (*model.Token, error) {
	for range maxCollisionRetries {
		code, err := randomCode(tokenLength)
		if err != nil {
			return nil, err
		}
		t := &model.Token{
			Code:         code,
			ExamType:     req.ExamType,
			ExamCategory: req.ExamCategory,
			Difficulty:   req.Difficulty,
			CreatedAt:    time.Now(),
		}
		err = s.tokens.Create(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, err
		}
	}
	return nil, ErrTokenGenerate
}

func randomCode(n int) (string, error) {
	radix := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// Redeem takes the admission ticket left by Validate.
func (s *TokenService) Redeem(ctx context.Context, code string) (*model.Token, error) {
	return s.admissions.Redeem(ctx, NormalizeToken(code))
}

// RestoreAdmission puts a ticket back after a failed exam start.
func (s *TokenService) RestoreAdmission(ctx context.Context, t *model.Token) {
	if err := s.admissions.Restore(ctx, t); err != nil {
		s.log.Error().Err(err).Str("token", t.Code).Msg("Failed to restore admission ticket")
	}
}

// List returns tokens with pagination.
func (s *TokenService) List(ctx context.Context, f model.TokenFilter, page, perPage int) ([]model.Token, *response.Pagination, error) {
	page, perPage = response.NormalizePage(page, perPage)
	tokens, total, err := s.tokens.List(ctx, f, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	return tokens, response.NewPagination(page, perPage, total), nil
}

// Delete removes a token.
func (s *TokenService) Delete(ctx context.Context, code string) error {
	return s.tokens.Delete(ctx, NormalizeToken(code))
}

// Disable marks an unused token as used so it can no longer be redeemed.
func (s *TokenService) Disable(ctx context.Context, code string) error {
	return s.tokens.Disable(ctx, NormalizeToken(code))
}

// Stats summarises token usage.
func (s *TokenService) Stats(ctx context.Context) (*model.TokenStats, error) {
	return s.tokens.Stats(ctx)
}
