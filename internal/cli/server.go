package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"classroom-competition/internal/app"
	"classroom-competition/internal/config"
	"classroom-competition/internal/domain"
	"classroom-competition/internal/infra/memory"
	pgstore "classroom-competition/internal/infra/postgres"
	redisstore "classroom-competition/internal/infra/redis"
	"classroom-competition/internal/infra/telegram"
	"classroom-competition/internal/questions"
	"classroom-competition/internal/roster"
	transport "classroom-competition/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the competition server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	bundled, err := loadQuestionSets(configPath, cfg)
	if err != nil {
		return err
	}
	var loader memory.QuestionSetLoader = memory.NewStaticQuestionSetLoader(bundled)
	if pool != nil {
		loader = memory.FallbackLoader{pgstore.NewQuestionSetLoader(pool), loader}
	}

	setTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questionSets app.QuestionSetRepository
	if redisClient != nil {
		questionSets = redisstore.NewQuestionSetRepository(redisClient, loader, setTTL)
	} else {
		questionSets = memory.NewQuestionSetRepository(loader, setTTL)
	}

	var store app.CompetitionRepository
	if redisClient != nil {
		store = redisstore.NewCompetitionStore(redisClient, redisTTL)
	} else {
		store = memory.NewCompetitionStore()
	}

	var (
		feed  transport.ChatFeed
		sinks app.MultiChatSink
	)
	if redisClient != nil {
		chat := redisstore.NewChatSink(redisClient, cfg.Chat.History)
		feed, sinks = chat, append(sinks, chat)
	} else {
		chat := memory.NewChatLog(cfg.Chat.History)
		feed, sinks = chat, append(sinks, chat)
	}
	if tg := cfg.Chat.Telegram; tg.Token != "" && tg.ChatID != 0 {
		sink, err := telegram.NewChatSink(tg.Token, tg.Endpoint, tg.ChatID, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			log.Printf("telegram chat disabled: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	service := app.NewCompetitionService(store, questionSets, roster.NewDirectory(cfg.Classrooms), sinks, app.Defaults{
		DurationMinutes: cfg.Competition.DurationMinutes,
		Grade:           cfg.Questions.Grade,
		QuestionCount:   cfg.Questions.Count,
	})
	wsHandler := transport.NewWSHandler(service, feed)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting competition service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadQuestionSets reads the question files listed in config. Relative paths
// resolve against the config file's directory.
func loadQuestionSets(configPath string, cfg config.Config) (map[string]domain.QuestionSet, error) {
	sets := make(map[string]domain.QuestionSet, len(cfg.Questions.Sets))
	for id, f := range cfg.Questions.Sets {
		path := f.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(configPath), path)
		}
		qs, err := questions.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sets[id] = domain.QuestionSet{ID: id, Title: f.Title, Grade: f.Grade, Questions: qs}
	}
	return sets, nil
}
