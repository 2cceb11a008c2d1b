package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/database"
	"github.com/stemsi/quizrun-backend/internal/logger"
	"github.com/stemsi/quizrun-backend/internal/model"
	"github.com/stemsi/quizrun-backend/internal/repository"
	"github.com/stemsi/quizrun-backend/internal/service"
	"github.com/stemsi/quizrun-backend/internal/validator"
)

func main() {
	var file string
	var dryRun bool
	flag.StringVar(&file, "file", "questions.json", "JSON array of questions to import")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the file without writing")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	raw, err := os.ReadFile(file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to read question file")
	}

	var seeds []model.SeedQuestion
	if err := json.Unmarshal(raw, &seeds); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse question file")
	}

	v := govalidator.New()
	v.SetTagName("binding")
	validator.Register(v)

	questions := make([]model.Question, 0, len(seeds))
	rejected := 0
	for i, s := range seeds {
		q, problems := convert(v, s)
		if len(problems) > 0 {
			rejected++
			fmt.Printf("#%d rejected: %s\n", i+1, strings.Join(problems, "; "))
			continue
		}
		questions = append(questions, q)
	}

	fmt.Printf("=== %d valid, %d rejected ===\n", len(questions), rejected)
	if dryRun || len(questions) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	n, err := repository.NewQuestionRepository(pool).BulkCreate(ctx, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to insert questions")
	}
	fmt.Printf("Inserted %d questions\n", n)

	// Servers would keep serving stale counts until the cache expires.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, inventory cache not invalidated")
		return
	}
	defer rdb.Close()
	if err := service.NewRedisStore(rdb, cfg.Quiz.SnapshotTTL).InvalidateInventory(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate inventory cache")
	}
}

// convert validates one seed and normalizes it into a question.
func convert(v *govalidator.Validate, s model.SeedQuestion) (model.Question, []string) {
	var problems []string
	if err := v.Struct(s); err != nil {
		for field, msg := range validator.TranslateErrors(err) {
			problems = append(problems, field+": "+msg)
		}
		return model.Question{}, problems
	}

	q := model.Question{
		Text:          strings.TrimSpace(s.Text),
		Options:       s.Options,
		CorrectAnswer: s.CorrectAnswer,
		ImageRef:      s.ImageRef,
		Category:      strings.TrimSpace(s.Category),
		Type:          s.Type,
		Points:        s.Points,
		Explanation:   s.Explanation,
	}
	q.Difficulty, _ = model.ParseDifficulty(s.Difficulty)
	if q.Difficulty == model.DifficultyMixed {
		problems = append(problems, "difficulty: a question cannot be Mixed")
	}
	if q.Type == "" {
		q.Type = "multiple_choice"
	}
	if q.Points <= 0 {
		q.Points = 1
	}
	if !q.HasOption(q.CorrectAnswer) {
		problems = append(problems, "correct_answer: must be one of the options")
	}
	return q, problems
}
