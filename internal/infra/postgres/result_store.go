package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-engine/internal/domain"
)

// ResultStore persists finished attempts and issues certificates in Postgres.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) RecordAttempt(ctx context.Context, assessmentID, userID string, result domain.Result, answers []domain.AnswerEntry) error {
	sections, err := json.Marshal(result.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	answerLog, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempt_results
		   (assessment_id, user_id, score, total, percent, passed, elapsed_seconds, sections, answers)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		assessmentID, userID, result.Score, result.Total, result.Percent, result.Pass,
		result.ElapsedSeconds, sections, answerLog,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// IssueReward writes a certificate row and credits the reward balance. The
// reward amount comes from the stored assessment config, so the certificate
// always reflects what the assessment currently grants.
func (s *ResultStore) IssueReward(ctx context.Context, assessmentID, userID string, result domain.Result) (domain.CertificateHandle, error) {
	var rawConfig []byte
	if err := s.pool.QueryRow(ctx,
		`SELECT config FROM assessments WHERE id=$1`, assessmentID,
	).Scan(&rawConfig); err != nil {
		return domain.CertificateHandle{}, fmt.Errorf("load reward config: %w", err)
	}
	var cfg domain.AssessmentConfig
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return domain.CertificateHandle{}, fmt.Errorf("unmarshal reward config: %w", err)
	}

	cert := domain.CertificateHandle{
		ID:           newCertificateID(),
		AssessmentID: assessmentID,
		UserID:       userID,
		Percent:      result.Percent,
		RewardPoints: cfg.RewardPoints,
		IssuedAt:     time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO certificates (id, assessment_id, user_id, percent, reward_points, issued_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		cert.ID, cert.AssessmentID, cert.UserID, cert.Percent, cert.RewardPoints, cert.IssuedAt,
	)
	if err != nil {
		return domain.CertificateHandle{}, fmt.Errorf("issue certificate: %w", err)
	}
	return cert, nil
}

func newCertificateID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "cert-" + hex.EncodeToString(buf)
}
