package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/engine"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
	"github.com/rs/zerolog"
)

func TestGatewayLoadSessionNotFound(t *testing.T) {
	_, rdb := newRedis(t)
	gw := NewExamGateway(NewQuestionService(&memQuestions{}, zerolog.Nop()), newMemStudents(), newMemSessions(), newMemResults(), rdb, nil, zerolog.Nop())

	_, err := gw.LoadSession(context.Background(), uuid.New())
	if !errors.Is(err, engine.ErrSessionNotFound) {
		t.Fatalf("LoadSession = %v, want ErrSessionNotFound", err)
	}
}

func TestGatewaySaveResultQueuesOnce(t *testing.T) {
	mr, rdb := newRedis(t)
	results := newMemResults()
	gw := NewExamGateway(NewQuestionService(&memQuestions{}, zerolog.Nop()), newMemStudents(), newMemSessions(), results, rdb, nil, zerolog.Nop())
	ctx := context.Background()

	res := &model.ExamResult{
		StudentID:      uuid.New(),
		StudentName:    "Aiko",
		ExamType:       model.ExamTypeHiragana,
		ExamCategory:   "hiragana-basic",
		Score:          8,
		TotalQuestions: 10,
		Percentage:     80,
		Passed:         true,
		CompletedAt:    time.Now(),
	}
	for range 3 {
		if err := gw.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	queued, err := mr.List(config.WorkerKey.PersistResultsQueue)
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 1 {
		t.Fatalf("queued %d result events, want 1", len(queued))
	}
	if len(results.results) != 1 {
		t.Errorf("stored %d results", len(results.results))
	}
}

func TestResumeMarkerMissingPointer(t *testing.T) {
	_, rdb := newRedis(t)
	marker := NewResumeMarker(repository.NewResumeRepository(rdb))

	id, err := marker.Get(context.Background(), "unknown-device")
	if err != nil || id != uuid.Nil {
		t.Fatalf("Get = %v, %v", id, err)
	}
}
