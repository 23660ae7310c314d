package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
)

// AssessmentCache caches assessment content in Redis (one JSON value per
// assessment) and falls back to the wrapped source on a miss. Concurrent
// misses for the same assessment collapse into a single backing load.
type AssessmentCache struct {
	client *redis.Client
	inner  app.QuestionSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

type cachedAssessment struct {
	Config    domain.AssessmentConfig `json:"config"`
	Questions []domain.Question       `json:"questions"`
}

func NewAssessmentCache(client *redis.Client, inner app.QuestionSource, ttl time.Duration) *AssessmentCache {
	return &AssessmentCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AssessmentCache) LoadAssessment(ctx context.Context, assessmentID string) (domain.AssessmentConfig, []domain.Question, error) {
	if cached, ok := c.readCache(ctx, assessmentID); ok {
		return cached.Config, cached.Questions, nil
	}

	result, err, _ := c.sf.Do(assessmentID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, ok := c.readCache(ctx, assessmentID); ok {
			return cached, nil
		}

		cfg, questions, err := c.inner.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return cachedAssessment{}, err
		}
		loaded := cachedAssessment{Config: cfg, Questions: questions}

		if raw, err := json.Marshal(loaded); err == nil {
			// Best-effort fill; a failed cache write just means another source hit next time.
			_ = c.client.Set(ctx, c.key(assessmentID), raw, c.ttlWithJitter()).Err()
		}
		return loaded, nil
	})
	if err != nil {
		return domain.AssessmentConfig{}, nil, err
	}
	loaded := result.(cachedAssessment)
	return loaded.Config, loaded.Questions, nil
}

func (c *AssessmentCache) readCache(ctx context.Context, assessmentID string) (cachedAssessment, bool) {
	raw, err := c.client.Get(ctx, c.key(assessmentID)).Bytes()
	if err != nil {
		// redis.Nil and transport errors alike fall back to the source.
		return cachedAssessment{}, false
	}
	var cached cachedAssessment
	if err := json.Unmarshal(raw, &cached); err != nil {
		return cachedAssessment{}, false
	}
	return cached, true
}

func (c *AssessmentCache) key(assessmentID string) string {
	return "assessment:content:" + assessmentID
}

func (c *AssessmentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
