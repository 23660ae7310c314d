package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/infra/memory"
	pgstore "assessment-engine/internal/infra/postgres"
	pgmigrations "assessment-engine/internal/infra/postgres/migrations"
	redisstore "assessment-engine/internal/infra/redis"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedAssessment(t, ctx, pgURL, sampleAssessment())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	source := memory.NewCachedAssessmentSource(pgstore.NewAssessmentSource(pool), 5*time.Minute)
	snapshots := redisstore.NewSnapshotStore(redisClient, 2*time.Hour)
	results := pgstore.NewResultStore(pool)
	service := app.NewAttemptService(source, snapshots, results)

	attempt, err := service.StartAttempt(ctx, "placement-a1", "u1")
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	// Answer every question correctly; answers travel by value so the
	// shuffled option order does not matter.
	total := attempt.View().Total
	for i := 0; i < total; i++ {
		attempt.GoTo(i)
		attempt.SetAnswer(attemptAnswer(t, attempt.View().Question.ID))
	}

	// Interruption: the exit snapshot lands in Redis and a second service
	// instance resumes from it.
	service.CloseAttempt("placement-a1", "u1")
	if exists := redisClient.Exists(ctx, "attempt:snapshot:placement-a1:u1").Val(); exists != 1 {
		t.Fatalf("expected recovery snapshot in redis")
	}

	service = app.NewAttemptService(source, snapshots, results)
	attempt, err = service.StartAttempt(ctx, "placement-a1", "u1")
	if err != nil {
		t.Fatalf("resume attempt: %v", err)
	}
	if got := countAnswered(attempt); got != total {
		t.Fatalf("expected %d answers after resume, got %d", total, got)
	}

	result, err := attempt.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-attempt.Persisted()

	if !result.Pass || result.Score != total {
		t.Fatalf("expected full pass, got %+v", result)
	}
	if exists := redisClient.Exists(ctx, "attempt:snapshot:placement-a1:u1").Val(); exists != 0 {
		t.Fatalf("snapshot must be invalidated after submission")
	}

	var attempts int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM attempt_results WHERE assessment_id=$1 AND user_id=$2`, "placement-a1", "u1").Scan(&attempts); err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected one attempt row, got %d", attempts)
	}
	var certs int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM certificates WHERE assessment_id=$1 AND user_id=$2`, "placement-a1", "u1").Scan(&certs); err != nil {
		t.Fatalf("count certificates: %v", err)
	}
	if certs != 1 {
		t.Fatalf("expected one certificate, got %d", certs)
	}
}

// attemptAnswer maps question IDs to their seeded correct answers.
func attemptAnswer(t *testing.T, questionID string) string {
	t.Helper()
	for _, q := range sampleAssessment().Questions {
		if q.ID == questionID {
			return q.Answer
		}
	}
	t.Fatalf("unknown question %s", questionID)
	return ""
}

func countAnswered(attempt *app.Attempt) int {
	total := attempt.View().Total
	answered := 0
	for i := 0; i < total; i++ {
		attempt.GoTo(i)
		if attempt.View().Entry.Selected != nil {
			answered++
		}
	}
	return answered
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exam", "POSTGRES_PASSWORD": "exampass", "POSTGRES_DB": "examdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://exam:exampass@%s:%s/examdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedAssessment(t *testing.T, ctx context.Context, dsn string, assessment memory.Assessment) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rawConfig, err := json.Marshal(assessment.Config)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	rawQuestions, err := json.Marshal(assessment.Questions)
	if err != nil {
		t.Fatalf("marshal questions: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO assessments (id, config, questions) VALUES (?, ?::jsonb, ?::jsonb)
		 ON CONFLICT (id) DO UPDATE SET config=EXCLUDED.config, questions=EXCLUDED.questions`,
		assessment.Config.ID, string(rawConfig), string(rawQuestions)); err != nil {
		t.Fatalf("insert assessment: %v", err)
	}
}

func sampleAssessment() memory.Assessment {
	return memory.Assessment{
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
			{ID: "q1", SectionID: "vocabulary", Prompt: "synonym of rapid", Options: []string{"slow", "fast"}, Answer: "fast", Position: 1},
			{ID: "q2", SectionID: "vocabulary", Prompt: "antonym of begin", Options: []string{"start", "finish"}, Answer: "finish", Position: 2},
			{ID: "q3", SectionID: "grammar", Prompt: "she ___ daily", Options: []string{"go", "goes"}, Answer: "goes", Position: 3},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
