package memory

import (
	"context"
	"testing"
	"time"

	"assessment-engine/internal/domain"
)

func sampleAssessment() Assessment {
	return Assessment{
		Config: domain.AssessmentConfig{
			ID:               "a1",
			TimeLimitSeconds: 300,
			PassingScore:     50,
			Sections:         []domain.SectionConfig{{ID: "vocab", Label: "Vocabulary"}},
		},
		Questions: []domain.Question{
			{ID: "q1", SectionID: "vocab", Prompt: "pick one", Options: []string{"a", "b"}, Answer: "a", Position: 1},
		},
	}
}

type countingSource struct {
	inner *StaticAssessmentSource
	calls int
}

func (s *countingSource) LoadAssessment(ctx context.Context, assessmentID string) (domain.AssessmentConfig, []domain.Question, error) {
	s.calls++
	return s.inner.LoadAssessment(ctx, assessmentID)
}

func TestCachedSourceAvoidsRepeatedLoads(t *testing.T) {
	source := &countingSource{inner: NewStaticAssessmentSource(map[string]Assessment{"a1": sampleAssessment()})}
	cached := NewCachedAssessmentSource(source, time.Minute)

	if _, _, err := cached.LoadAssessment(context.Background(), "a1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected one backing load, got %d", source.calls)
	}

	cfg, questions, err := cached.LoadAssessment(context.Background(), "a1")
	if err != nil {
		t.Fatalf("load 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, backing calls=%d", source.calls)
	}
	if cfg.ID != "a1" || len(questions) != 1 {
		t.Fatalf("cache returned wrong content: %+v / %d questions", cfg, len(questions))
	}
}

func TestStaticSourceUnknownAssessment(t *testing.T) {
	source := NewStaticAssessmentSource(map[string]Assessment{"a1": sampleAssessment()})
	if _, _, err := source.LoadAssessment(context.Background(), "missing"); err != domain.ErrAssessmentNotFound {
		t.Fatalf("expected ErrAssessmentNotFound, got %v", err)
	}
}
