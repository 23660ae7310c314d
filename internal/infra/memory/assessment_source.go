package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
)

// Assessment bundles the content-store payload for one assessment.
type Assessment struct {
	Config    domain.AssessmentConfig
	Questions []domain.Question
}

// StaticAssessmentSource serves assessments from an in-memory map (useful for
// tests/demos).
type StaticAssessmentSource struct {
	assessments map[string]Assessment
}

func NewStaticAssessmentSource(assessments map[string]Assessment) *StaticAssessmentSource {
	return &StaticAssessmentSource{assessments: assessments}
}

func (s *StaticAssessmentSource) LoadAssessment(_ context.Context, assessmentID string) (domain.AssessmentConfig, []domain.Question, error) {
	if a, ok := s.assessments[assessmentID]; ok {
		return a.Config, a.Questions, nil
	}
	return domain.AssessmentConfig{}, nil, domain.ErrAssessmentNotFound
}

// CachedAssessmentSource caches assessment content with TTL to avoid repeated
// backing-store hits; concurrent misses for the same assessment collapse into
// a single load.
type CachedAssessmentSource struct {
	inner app.QuestionSource
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedAssessment
}

type cachedAssessment struct {
	assessment Assessment
	expiresAt  time.Time
}

func NewCachedAssessmentSource(inner app.QuestionSource, ttl time.Duration) *CachedAssessmentSource {
	return &CachedAssessmentSource{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedAssessment),
	}
}

func (s *CachedAssessmentSource) LoadAssessment(ctx context.Context, assessmentID string) (domain.AssessmentConfig, []domain.Question, error) {
	now := s.clock()

	s.mu.RLock()
	if entry, ok := s.cache[assessmentID]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return entry.assessment.Config, entry.assessment.Questions, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(assessmentID, func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if entry, ok := s.cache[assessmentID]; ok && entry.expiresAt.After(now) {
			s.mu.RUnlock()
			return entry.assessment, nil
		}
		s.mu.RUnlock()

		cfg, questions, err := s.inner.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return Assessment{}, err
		}
		loaded := Assessment{Config: cfg, Questions: questions}

		s.mu.Lock()
		s.cache[assessmentID] = cachedAssessment{
			assessment: loaded,
			expiresAt:  now.Add(s.ttlWithJitter()),
		}
		s.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return domain.AssessmentConfig{}, nil, err
	}
	loaded := result.(Assessment)
	return loaded.Config, loaded.Questions, nil
}

func (s *CachedAssessmentSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
