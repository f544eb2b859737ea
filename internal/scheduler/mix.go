package scheduler

import "github.com/remaimber-it/mastery/internal/domain/quiz"

// Weights in percent, in quiz.QuestionTypes order (A1, A2, B1, B2).
var (
	theoryWeights   = [4]int{40, 30, 20, 10}
	balancedWeights = [4]int{25, 25, 25, 25}
	practiceWeights = [4]int{10, 20, 30, 40}
)

// Mix splits a question budget into question types. Weak concepts lean on
// theory questions, strong ones on practical code questions. Rounding uses
// the largest remainder so the parts always add up to count.
func Mix(count int, score float64) quiz.TypeMix {
	if count <= 0 {
		return quiz.TypeMix{}
	}

	weights := balancedWeights
	switch {
	case score < 0.4:
		weights = theoryWeights
	case score >= 0.7:
		weights = practiceWeights
	}

	var parts, rems [4]int
	assigned := 0
	for i, w := range weights {
		parts[i] = w * count / 100
		rems[i] = w * count % 100
		assigned += parts[i]
	}

	for ; assigned < count; assigned++ {
		best := 0
		for i := 1; i < len(rems); i++ {
			if rems[i] > rems[best] {
				best = i
			}
		}
		parts[best]++
		rems[best] = -1
	}

	return quiz.TypeMix{
		TheoryChoice:   parts[0],
		FillBlank:      parts[1],
		PracticeChoice: parts[2],
		PracticeCode:   parts[3],
	}
}
