package service

import (
	"context"

	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"golang.org/x/sync/errgroup"
)

const recentResultsLimit = 5

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	Counts        *repository.DashboardCounts        `json:"counts"`
	LiveSessions  int                                `json:"live_sessions"`
	Results       *model.ResultStats                 `json:"results"`
	Tokens        *model.TokenStats                  `json:"tokens"`
	Categories    []repository.CategoryStat          `json:"categories"`
	RecentResults []repository.DashboardRecentResult `json:"recent_results"`
}

// DashboardReader is the aggregate data behind the dashboard.
type DashboardReader interface {
	GetSummaryCounts(ctx context.Context) (*repository.DashboardCounts, error)
	GetCategoryStats(ctx context.Context) ([]repository.CategoryStat, error)
	GetRecentResults(ctx context.Context, limit int) ([]repository.DashboardRecentResult, error)
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo     DashboardReader
	results  ResultReader
	tokens   *TokenService
	registry *engine.Registry
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardReader, results ResultReader, tokens *TokenService, registry *engine.Registry) *DashboardService {
	return &DashboardService{repo: repo, results: results, tokens: tokens, registry: registry}
}

// GetDashboardData fetches all dashboard metrics concurrently.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	data := &DashboardData{LiveSessions: s.registry.Len()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Counts, err = s.repo.GetSummaryCounts(ctx)
		return err
	})
	g.Go(func() (err error) {
		data.Results, err = s.results.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		data.Tokens, err = s.tokens.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		data.Categories, err = s.repo.GetCategoryStats(ctx)
		return err
	})
	g.Go(func() (err error) {
		data.RecentResults, err = s.repo.GetRecentResults(ctx, recentResultsLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}
