package mastery

import (
	"math"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
)

// Criteria are the thresholds a concept must meet, all at once, to be mastered.
type Criteria struct {
	MinScore         float64
	MinStreak        int
	MinAsked         int
	Z                float64
	MaxIntervalWidth float64
}

func DefaultCriteria() Criteria {
	return Criteria{
		MinScore:         0.8,
		MinStreak:        0,
		MinAsked:         5,
		Z:                1.96,
		MaxIntervalWidth: 0.15,
	}
}

type Evaluator struct {
	criteria Criteria
}

func NewEvaluator(criteria Criteria) *Evaluator {
	return &Evaluator{criteria: criteria}
}

func (e *Evaluator) Criteria() Criteria {
	return e.criteria
}

// IntervalWidth is the full width of the Wald interval around the score.
// It is computed from the unrounded variance of the current pseudo-counts.
func (e *Evaluator) IntervalWidth(p concept.Progress) float64 {
	return 2 * e.criteria.Z * math.Sqrt(BetaVariance(p.Alfa, p.Beta))
}

func (e *Evaluator) IsMastered(p concept.Progress) bool {
	return p.Score >= e.criteria.MinScore &&
		p.Streak >= e.criteria.MinStreak &&
		p.Asked >= e.criteria.MinAsked &&
		e.IntervalWidth(p) <= e.criteria.MaxIntervalWidth
}

// EvaluateBlock reports whether every concept in the block is mastered.
// A block without concepts has nothing left to learn and counts as mastered.
func (e *Evaluator) EvaluateBlock(progresses []concept.Progress) bool {
	for _, p := range progresses {
		if !p.Mastered {
			return false
		}
	}
	return true
}

// Reevaluate applies grouped answers to the not yet mastered concepts and
// latches mastery on those that now qualify. Mastered concepts are left
// untouched. It returns the progresses that changed and the block result
// over the full set.
func (e *Evaluator) Reevaluate(progresses []concept.Progress, answersByConcept map[string][]quiz.Answer) ([]concept.Progress, bool) {
	var changed []concept.Progress
	all := make([]concept.Progress, 0, len(progresses))

	for _, p := range progresses {
		if p.Mastered {
			all = append(all, p)
			continue
		}

		answers := answersByConcept[p.ConceptID]
		next := Update(p, answers)
		next.Mastered = e.IsMastered(next)
		if len(answers) > 0 || next.Mastered {
			changed = append(changed, next)
		}
		all = append(all, next)
	}

	return changed, e.EvaluateBlock(all)
}
