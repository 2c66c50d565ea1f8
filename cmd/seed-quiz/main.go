// Command seed-quiz creates and publishes a sample fractions quiz covering
// every question type. Pass an author UUID to own it, else one is generated.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/cache"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	authorID := uuid.New()
	if len(os.Args) > 1 {
		id, err := uuid.Parse(os.Args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("Author must be a UUID")
		}
		authorID = id
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	quizRepo := repository.NewQuizRepository(pool)
	quizService := service.NewQuizService(
		quizRepo,
		repository.NewAttemptRepository(pool),
		cache.NewQuizCache(rdb, quizRepo, cfg.QuizCacheTTL, log),
		log,
	)

	fmt.Println("=== Seeding Sample Quiz ===")

	limit := 15
	quiz, err := quizService.CreateQuiz(ctx, authorID, &model.CreateQuizRequest{
		Title:             "Pecahan dan Desimal",
		TimeLimitMinutes:  &limit,
		AttemptsAllowed:   2,
		ShowResultsPolicy: model.ShowResultsImmediate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create quiz")
	}

	if _, err := quizService.ReplaceQuestions(ctx, quiz.ID, authorID, sampleQuestions()); err != nil {
		log.Fatal().Err(err).Msg("Failed to add questions")
	}

	if _, err := quizService.Publish(ctx, quiz.ID, authorID); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish quiz")
	}

	fmt.Printf("Quiz ID:   %s\nAuthor ID: %s\n", quiz.ID, authorID)
}

func sampleQuestions() *model.ReplaceQuestionsRequest {
	two, half := 2.0, 0.05
	return &model.ReplaceQuestionsRequest{Questions: []model.QuestionInput{
		{
			Type: model.QuestionTypeMCQSingle,
			Text: "1/2 + 1/4 = ?",
			Options: []model.OptionInput{
				{Text: "3/4", IsCorrect: true},
				{Text: "2/6"},
				{Text: "1/8"},
			},
		},
		{
			Type:   model.QuestionTypeMCQMulti,
			Text:   "Manakah yang senilai dengan 0,5?",
			Points: &two,
			Options: []model.OptionInput{
				{Text: "1/2", IsCorrect: true},
				{Text: "2/4", IsCorrect: true},
				{Text: "5/100"},
			},
		},
		{
			Type: model.QuestionTypeTrueFalse,
			Text: "0,25 lebih besar dari 1/5.",
			Options: []model.OptionInput{
				{Text: "True", IsCorrect: true},
				{Text: "False"},
			},
		},
		{
			Type:      model.QuestionTypeNumeric,
			Text:      "Tuliskan 3/8 dalam bentuk desimal.",
			Tolerance: &half,
			Options:   []model.OptionInput{{Text: "0.375", IsCorrect: true}},
		},
		{
			Type: model.QuestionTypeShortText,
			Text: "Jelaskan cara menyamakan penyebut.",
		},
	}}
}
