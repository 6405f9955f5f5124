package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"classroom-competition/internal/config"
	"classroom-competition/internal/domain"
	pgstore "classroom-competition/internal/infra/postgres"
	redisstore "classroom-competition/internal/infra/redis"
	"classroom-competition/internal/questions"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type importOptions struct {
	id    string
	title string
	grade int
	file  string
}

// NewImportQuestionsCmd stores a JSON question file as a named question set.
func NewImportQuestionsCmd(configPath *string) *cobra.Command {
	opts := importOptions{}
	cmd := &cobra.Command{
		Use:   "import-questions",
		Short: "Import a JSON question file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, opts)
		},
	}
	cmd.Flags().StringVar(&opts.id, "id", "", "question set id")
	cmd.Flags().StringVar(&opts.title, "title", "", "question set title")
	cmd.Flags().IntVar(&opts.grade, "grade", 0, "grade the set targets")
	cmd.Flags().StringVar(&opts.file, "file", "", "path to a JSON array of questions")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImport(ctx context.Context, configPath string, opts importOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	qs, err := questions.ReadFile(opts.file)
	if err != nil {
		return err
	}
	if len(qs) == 0 {
		return fmt.Errorf("%s: %w: no questions", opts.file, domain.ErrMalformedQuestionInput)
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	set := domain.QuestionSet{ID: opts.id, Title: opts.title, Grade: opts.grade, Questions: qs}
	if err := pgstore.NewQuestionSetWriter(db).Upsert(ctx, set); err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache := redisstore.NewQuestionSetRepository(client, nil, config.TTLDuration(cfg.Questions.TTL, 10*time.Minute))
		if err := cache.Invalidate(ctx, opts.id); err != nil {
			log.Printf("invalidate cached question set %s: %v", opts.id, err)
		}
	}

	log.Printf("imported question set %s (%d questions)", opts.id, len(qs))
	return nil
}
