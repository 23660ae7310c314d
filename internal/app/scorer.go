package app

import (
	"math"
	"time"

	"assessment-engine/internal/domain"
)

// scoreAttempt grades the ledger against the question sequence and produces
// the terminal Result. The per-section breakdown computed here is the single
// source for both the stored result and any issued certificate.
func scoreAttempt(cfg domain.AssessmentConfig, questions []domain.Question, ledger []domain.AnswerEntry, sections []domain.Section, startedAt, now time.Time) domain.Result {
	correct := 0
	perSection := make(map[string]*domain.SectionScore, len(sections))
	breakdown := make([]domain.SectionScore, 0, len(sections))
	for _, sec := range sections {
		breakdown = append(breakdown, domain.SectionScore{SectionID: sec.ID, Label: sec.Label})
	}
	for i := range breakdown {
		perSection[breakdown[i].SectionID] = &breakdown[i]
	}

	for i, q := range questions {
		score := perSection[q.SectionID]
		if score != nil {
			score.Total++
		}
		// Unanswered entries never match the correct answer.
		if ledger[i].Selected == nil || *ledger[i].Selected != q.Answer {
			continue
		}
		correct++
		if score != nil {
			score.Correct++
		}
	}

	total := len(questions)
	percent := 0
	if total > 0 {
		percent = int(math.Round(float64(correct) / float64(total) * 100))
	}

	elapsed := int(now.Sub(startedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	// Clamp absorbs clock drift and a countdown that over-ran before the
	// auto-submit tick fired.
	if elapsed > cfg.TimeLimitSeconds {
		elapsed = cfg.TimeLimitSeconds
	}

	return domain.Result{
		Score:          correct,
		Total:          total,
		Percent:        percent,
		Pass:           percent >= cfg.PassingScore,
		ElapsedSeconds: elapsed,
		Sections:       breakdown,
	}
}
