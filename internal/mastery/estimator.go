// Package mastery estimates per-concept mastery with a Beta-Bernoulli model
// and decides when a concept, and a whole block, is mastered.
package mastery

import (
	"math"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/id"
)

// Uniform prior pseudo-counts.
const (
	PriorAlfa = 1.0
	PriorBeta = 1.0
)

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func BetaMean(alfa, beta float64) float64 {
	return alfa / (alfa + beta)
}

func BetaVariance(alfa, beta float64) float64 {
	s := alfa + beta
	return alfa * beta / (s * s * (s + 1))
}

// NewProgress returns the starting estimate for a concept at block start.
func NewProgress(userBlockID, conceptID string) concept.Progress {
	return concept.Progress{
		ID:          id.GenerateID(),
		UserBlockID: userBlockID,
		ConceptID:   conceptID,
		Alfa:        PriorAlfa,
		Beta:        PriorBeta,
		Score:       Round2(BetaMean(PriorAlfa, PriorBeta)),
		Variance:    Round2(BetaVariance(PriorAlfa, PriorBeta)),
	}
}

// Update folds a batch of answers for one concept into its progress.
// Answers must be ordered oldest first.
//
// The pseudo-counts are advanced by the running totals, not by the batch
// increment: alfa' = alfa + correct', beta' = beta + asked' - correct'.
func Update(p concept.Progress, answers []quiz.Answer) concept.Progress {
	if len(answers) == 0 {
		return p
	}

	correct := 0
	for _, a := range answers {
		i := a.QuestionType.Index()
		if i >= 0 {
			p.ByType[i].Asked++
		}
		if a.IsCorrect {
			correct++
			if i >= 0 {
				p.ByType[i].Correct++
			}
		}
	}

	p.Correct += correct
	p.Asked += len(answers)

	p.Alfa = Round2(p.Alfa + float64(p.Correct))
	p.Beta = Round2(p.Beta + float64(p.Asked-p.Correct))
	p.Score = Round2(BetaMean(p.Alfa, p.Beta))
	p.Variance = Round2(BetaVariance(p.Alfa, p.Beta))

	for i := len(answers) - 1; i >= 0; i-- {
		if !answers[i].IsCorrect {
			p.Streak = 0
			break
		}
		p.Streak++
	}

	return p
}
