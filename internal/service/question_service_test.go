package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lpkmns/nihongo-exam/internal/catalog"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/rs/zerolog"
)

func TestLoadQuestionsFallsBackToBuiltin(t *testing.T) {
	builtin := catalog.BuiltinQuestions("hiragana-basic")
	if len(builtin) == 0 {
		t.Fatal("hiragana-basic has no built-in questions")
	}
	custom := []model.Question{{ID: "custom_1", Category: "hiragana-basic", Options: []string{"a", "b"}}}

	tests := []struct {
		name  string
		store *memQuestions
		want  int
	}{
		{"database error", &memQuestions{err: errBoom}, len(builtin)},
		{"empty category", &memQuestions{}, len(builtin)},
		{"stored questions win", &memQuestions{byCat: map[string][]model.Question{"hiragana-basic": custom}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewQuestionService(tt.store, zerolog.Nop())
			got, err := svc.LoadQuestions(context.Background(), "hiragana-basic")
			if err != nil {
				t.Fatalf("LoadQuestions: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d questions, want %d", len(got), tt.want)
			}
		})
	}
}

func TestBuiltinQuestionsAreProtected(t *testing.T) {
	store := &memQuestions{}
	svc := NewQuestionService(store, zerolog.Nop())
	ctx := context.Background()
	builtinID := catalog.BuiltinQuestions("hiragana-basic")[0].ID

	if err := svc.Delete(ctx, builtinID); !errors.Is(err, ErrBuiltinQuestion) {
		t.Errorf("Delete(builtin) = %v", err)
	}
	if _, err := svc.Update(ctx, builtinID, model.QuestionRequest{}); !errors.Is(err, ErrBuiltinQuestion) {
		t.Errorf("Update(builtin) = %v", err)
	}
	if err := svc.Delete(ctx, "not-a-custom-id"); !errors.Is(err, ErrBuiltinQuestion) {
		t.Errorf("Delete(foreign id) = %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("store saw deletes: %v", store.deleted)
	}

	q, err := svc.Create(ctx, model.QuestionRequest{
		Type:     model.ExamTypeKanji,
		Category: " kanji-basic ",
		Question: "山",
		Options:  []string{"やま", "かわ"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(q.ID, catalog.CustomPrefix) || !q.IsCustom || q.Category != "kanji-basic" {
		t.Errorf("created %+v", q)
	}
	if err := svc.Delete(ctx, q.ID); err != nil {
		t.Errorf("Delete(custom) = %v", err)
	}
}
