package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/lpkmns/nihongo-exam/internal/catalog"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/database"
	"github.com/lpkmns/nihongo-exam/internal/logger"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/lpkmns/nihongo-exam/internal/repository"
)

func main() {
	only := flag.String("category", "", "Seed a single category instead of the whole bank")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	categories := catalog.BuiltinCategories()
	if *only != "" {
		categories = []string{*only}
	}

	fmt.Println("=== Seeding Built-in Questions ===")

	total := 0
	for _, category := range categories {
		questions := catalog.BuiltinQuestions(category)
		if len(questions) == 0 {
			log.Warn().Str("category", category).Msg("No built-in questions for category")
			continue
		}
		written, err := questionRepo.UpsertBuiltin(ctx, questions)
		if err != nil {
			log.Fatal().Err(err).Str("category", category).Int("written", written).Msg("Failed to seed questions")
		}
		total += written
		fmt.Printf("  %-24s %3d questions (%s)\n", category, written, typeOf(questions))
	}

	fmt.Printf("\nSuccess! Seeded %d questions across %d categories\n", total, len(categories))
}

func typeOf(questions []model.Question) model.ExamType {
	return questions[0].Type
}
