package app

import (
	"math/rand"
	"sort"

	"assessment-engine/internal/domain"
)

// buildSequence produces the question order to present for an attempt.
//
// Fresh attempts group questions by section (config order first, unknown
// sections in first-seen order), shuffle each group, and independently shuffle
// every question's option list. Recovered attempts reproduce a prior order by
// identifier; questions added to the content store since the snapshot are
// appended at the end in their original positions, unshuffled.
func buildSequence(cfg domain.AssessmentConfig, questions []domain.Question, prior []string, rnd *rand.Rand) ([]domain.Question, error) {
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	if len(prior) > 0 {
		return sequenceFromPrior(questions, prior, rnd), nil
	}

	groups := make(map[string][]domain.Question)
	var sectionOrder []string
	seen := make(map[string]bool)
	for _, sc := range cfg.Sections {
		sectionOrder = append(sectionOrder, sc.ID)
		seen[sc.ID] = true
	}
	for _, q := range questions {
		if !seen[q.SectionID] {
			sectionOrder = append(sectionOrder, q.SectionID)
			seen[q.SectionID] = true
		}
		groups[q.SectionID] = append(groups[q.SectionID], cloneQuestion(q))
	}

	sequence := make([]domain.Question, 0, len(questions))
	for _, sectionID := range sectionOrder {
		group := groups[sectionID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Position < group[j].Position
		})
		rnd.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		sequence = append(sequence, group...)
	}
	for i := range sequence {
		shuffleOptions(&sequence[i], rnd)
	}
	return sequence, nil
}

// sequenceFromPrior reorders questions to match a recovered snapshot's order.
func sequenceFromPrior(questions []domain.Question, prior []string, rnd *rand.Rand) []domain.Question {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	sequence := make([]domain.Question, 0, len(questions))
	used := make(map[string]bool, len(prior))
	for _, id := range prior {
		q, ok := byID[id]
		if !ok {
			// Question removed from the content store; skip it.
			continue
		}
		used[id] = true
		sequence = append(sequence, cloneQuestion(q))
	}

	var appended []domain.Question
	for _, q := range questions {
		if !used[q.ID] {
			appended = append(appended, cloneQuestion(q))
		}
	}
	sort.SliceStable(appended, func(i, j int) bool {
		return appended[i].Position < appended[j].Position
	})
	sequence = append(sequence, appended...)

	for i := range sequence {
		shuffleOptions(&sequence[i], rnd)
	}
	return sequence
}

// cloneQuestion copies a question with its own option slice so shuffling never
// mutates content shared with a cache.
func cloneQuestion(q domain.Question) domain.Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	return out
}

// shuffleOptions reorders a question's options in place. The correct answer is
// stored by value, so scoring is unaffected.
func shuffleOptions(q *domain.Question, rnd *rand.Rand) {
	rnd.Shuffle(len(q.Options), func(i, j int) {
		q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
	})
}

// buildSectionIndex derives contiguous section ranges from the final sequence.
// Sections are emitted in first-encountered order: the index describes the
// runtime sequence, not the configuration.
func buildSectionIndex(questions []domain.Question, cfg domain.AssessmentConfig) []domain.Section {
	labels := make(map[string]string, len(cfg.Sections))
	for _, sc := range cfg.Sections {
		labels[sc.ID] = sc.Label
	}

	var sections []domain.Section
	index := make(map[string]int)
	for i, q := range questions {
		if at, ok := index[q.SectionID]; ok {
			sections[at].Count++
			continue
		}
		label := labels[q.SectionID]
		if label == "" {
			label = q.SectionID
		}
		index[q.SectionID] = len(sections)
		sections = append(sections, domain.Section{
			ID:    q.SectionID,
			Label: label,
			Start: i,
			Count: 1,
		})
	}
	return sections
}
