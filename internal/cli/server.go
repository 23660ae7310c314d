package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"assessment-engine/internal/app"
	"assessment-engine/internal/config"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/memory"
	pgstore "assessment-engine/internal/infra/postgres"
	redisstore "assessment-engine/internal/infra/redis"
	transport "assessment-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment engine server",
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
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	freshness := config.Duration(cfg.Attempt.SnapshotFreshness, app.DefaultSnapshotFreshness)
	autosave := config.Duration(cfg.Attempt.AutosaveInterval, 30*time.Second)
	cacheTTL := config.Duration(cfg.Content.CacheTTL, 10*time.Minute)

	var source app.QuestionSource = memory.NewStaticAssessmentSource(sampleAssessments())
	if pool != nil {
		source = pgstore.NewAssessmentSource(pool)
	}
	if redisClient != nil {
		source = redisstore.NewAssessmentCache(redisClient, source, cacheTTL)
	} else {
		source = memory.NewCachedAssessmentSource(source, cacheTTL)
	}

	var snapshots app.SnapshotStore = memory.NewSnapshotStore()
	if redisClient != nil {
		snapshots = redisstore.NewSnapshotStore(redisClient, freshness)
	}

	var results app.ResultStore = memory.NewResultStore()
	if pool != nil {
		results = pgstore.NewResultStore(pool)
	}

	service := app.NewAttemptServiceWithTuning(source, snapshots, results, app.Tuning{
		SnapshotFreshness: freshness,
		AutosaveInterval:  autosave,
	})
	wsHandler := transport.NewWSHandler(service)

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

	go func() {
		log.Printf("starting assessment engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleAssessments provides minimal content for running without Postgres.
func sampleAssessments() map[string]memory.Assessment {
	return map[string]memory.Assessment{
		"placement-a1": {
			Config: domain.AssessmentConfig{
				ID:               "placement-a1",
				TimeLimitSeconds: 600,
				PassingScore:     60,
				RewardPoints:     50,
				Sections: []domain.SectionConfig{
					{ID: "vocabulary", Label: "Vocabulary", QuestionCount: 2},
					{ID: "grammar", Label: "Grammar", QuestionCount: 1},
				},
			},
			Questions: []domain.Question{
				{
					ID:        "q1",
					SectionID: "vocabulary",
					Prompt:    "Pick the synonym of \"rapid\".",
					Options:   []string{"slow", "fast", "late"},
					Answer:    "fast",
					Position:  1,
				},
				{
					ID:        "q2",
					SectionID: "vocabulary",
					Prompt:    "Pick the antonym of \"begin\".",
					Options:   []string{"start", "finish", "open"},
					Answer:    "finish",
					Position:  2,
				},
				{
					ID:        "q3",
					SectionID: "grammar",
					Prompt:    "She ___ to school every day.",
					Options:   []string{"go", "goes", "going"},
					Answer:    "goes",
					Position:  3,
				},
			},
		},
	}
}
