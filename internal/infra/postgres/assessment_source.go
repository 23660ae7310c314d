package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-engine/internal/domain"
)

// AssessmentSource loads assessment config and question JSONB from Postgres.
type AssessmentSource struct {
	pool *pgxpool.Pool
}

func NewAssessmentSource(pool *pgxpool.Pool) *AssessmentSource {
	return &AssessmentSource{pool: pool}
}

func (s *AssessmentSource) LoadAssessment(ctx context.Context, assessmentID string) (domain.AssessmentConfig, []domain.Question, error) {
	var rawConfig, rawQuestions []byte
	err := s.pool.QueryRow(ctx,
		`SELECT config, questions FROM assessments WHERE id=$1`, assessmentID,
	).Scan(&rawConfig, &rawQuestions)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AssessmentConfig{}, nil, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.AssessmentConfig{}, nil, fmt.Errorf("load assessment: %w", err)
	}

	var cfg domain.AssessmentConfig
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return domain.AssessmentConfig{}, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(rawQuestions, &questions); err != nil {
		return domain.AssessmentConfig{}, nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return cfg, questions, nil
}
