package mastery

import (
	"sort"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
)

// GroupByConcept buckets answers by the concept of the question they answer.
// Each bucket is ordered by submission time. Answers whose concept cannot be
// resolved are returned separately so the caller can report them.
func GroupByConcept(answers []quiz.Answer, conceptOf func(questionID string) (string, bool)) (map[string][]quiz.Answer, []quiz.Answer) {
	sorted := make([]quiz.Answer, len(answers))
	copy(sorted, answers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	grouped := make(map[string][]quiz.Answer)
	var orphans []quiz.Answer
	for _, a := range sorted {
		conceptID, ok := conceptOf(a.QuestionID)
		if !ok {
			orphans = append(orphans, a)
			continue
		}
		grouped[conceptID] = append(grouped[conceptID], a)
	}
	return grouped, orphans
}
