package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/export"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/rs/zerolog"
)

// ResultReader is the result data the admin screens need.
type ResultReader interface {
	List(ctx context.Context, f model.ResultFilter, page, perPage int) ([]model.ExamResult, int, error)
	ListAll(ctx context.Context, f model.ResultFilter) ([]model.ExamResult, error)
	GetByStudent(ctx context.Context, studentID uuid.UUID) (*model.ExamResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*model.ResultStats, error)
}

// ResultService handles result listing and export.
type ResultService struct {
	results ResultReader
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger
}

// NewResultService creates a new ResultService. Export timestamps are
// rendered in loc.
func NewResultService(results ResultReader, loc *time.Location, log zerolog.Logger) *ResultService {
	if loc == nil {
		loc = time.Local
	}
	return &ResultService{
		results: results,
		loc:     loc,
		now:     time.Now,
		log:     log.With().Str("component", "result_service").Logger(),
	}
}

// List retrieves results with pagination.
func (s *ResultService) List(ctx context.Context, f model.ResultFilter, page, perPage int) ([]model.ExamResult, *response.Pagination, error) {
	page, perPage = response.NormalizePage(page, perPage)

	results, total, err := s.results.List(ctx, f, page, perPage)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []model.ExamResult{}
	}

	return results, response.NewPagination(page, perPage, total), nil
}

// GetByStudent returns the result recorded for a student.
func (s *ResultService) GetByStudent(ctx context.Context, studentID uuid.UUID) (*model.ExamResult, error) {
	return s.results.GetByStudent(ctx, studentID)
}

// Delete removes a single result.
func (s *ResultService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.results.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("result_id", id.String()).Msg("Result deleted")
	return nil
}

// Stats summarises all results.
func (s *ResultService) Stats(ctx context.Context) (*model.ResultStats, error) {
	return s.results.Stats(ctx)
}

// Export writes every result matching f in the requested layout and
// returns the download filename.
func (s *ResultService) Export(ctx context.Context, w io.Writer, kind export.Kind, f model.ResultFilter) (string, error) {
	results, err := s.results.ListAll(ctx, f)
	if err != nil {
		return "", err
	}

	switch kind {
	case export.KindDetailed:
		err = export.WriteDetailedCSV(w, results, s.loc)
	case export.KindXLSX:
		err = export.WriteXLSX(w, results, s.loc)
	default:
		kind = export.KindSummary
		err = export.WriteSummaryCSV(w, results, s.loc)
	}
	if err != nil {
		return "", err
	}

	s.log.Info().Str("format", string(kind)).Int("results", len(results)).Msg("Results exported")
	return export.Filename(kind, s.now().In(s.loc)), nil
}
