package mastery_test

import (
	"math"
	"testing"
	"time"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/mastery"
)

func answers(results ...bool) []quiz.Answer {
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	out := make([]quiz.Answer, len(results))
	for i, ok := range results {
		out[i] = quiz.Answer{
			ID:         "a" + string(rune('0'+i)),
			QuestionID: "q" + string(rune('0'+i)),
			IsCorrect:  ok,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.857142, 0.86},
		{0.015306, 0.02},
		{0.125, 0.13},
		{-0.125, -0.13},
		{0.5, 0.5},
	}

	for _, tt := range tests {
		if got := mastery.Round2(tt.in); !almostEqual(got, tt.want) {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewProgress_UniformPrior(t *testing.T) {
	p := mastery.NewProgress("ub-1", "c-1")

	if p.ID == "" {
		t.Error("expected generated ID")
	}
	if p.Alfa != 1 || p.Beta != 1 {
		t.Errorf("expected alfa=beta=1, got %v/%v", p.Alfa, p.Beta)
	}
	if !almostEqual(p.Score, 0.5) {
		t.Errorf("expected score 0.5, got %v", p.Score)
	}
	if !almostEqual(p.Variance, 0.08) {
		t.Errorf("expected variance 0.08, got %v", p.Variance)
	}
	if p.Mastered || p.Streak != 0 || p.Asked != 0 {
		t.Errorf("unexpected starting progress: %+v", p)
	}
}

func TestUpdate_FiveCorrectFromPrior(t *testing.T) {
	p := mastery.NewProgress("ub-1", "c-1")

	got := mastery.Update(p, answers(true, true, true, true, true))

	if got.Correct != 5 || got.Asked != 5 {
		t.Errorf("expected 5/5, got %d/%d", got.Correct, got.Asked)
	}
	if !almostEqual(got.Alfa, 6) || !almostEqual(got.Beta, 1) {
		t.Errorf("expected alfa=6 beta=1, got %v/%v", got.Alfa, got.Beta)
	}
	if !almostEqual(got.Score, 0.86) {
		t.Errorf("expected score 0.86, got %v", got.Score)
	}
	if !almostEqual(got.Variance, 0.02) {
		t.Errorf("expected variance 0.02, got %v", got.Variance)
	}
	if got.Streak != 5 {
		t.Errorf("expected streak 5, got %d", got.Streak)
	}

	ev := mastery.NewEvaluator(mastery.DefaultCriteria())
	if ev.IsMastered(got) {
		t.Error("expected concept not mastered: interval is still too wide")
	}
}

func TestUpdate_ReappliesRunningTotals(t *testing.T) {
	p := concept.Progress{Correct: 5, Asked: 5, Alfa: 6, Beta: 1, Streak: 5}

	got := mastery.Update(p, answers(true, false))

	if got.Correct != 6 || got.Asked != 7 {
		t.Fatalf("expected 6/7, got %d/%d", got.Correct, got.Asked)
	}
	// alfa' = alfa + correct', beta' = beta + asked' - correct'
	if !almostEqual(got.Alfa, 12) {
		t.Errorf("expected alfa 12, got %v", got.Alfa)
	}
	if !almostEqual(got.Beta, 2) {
		t.Errorf("expected beta 2, got %v", got.Beta)
	}
	if !almostEqual(got.Score, 0.86) {
		t.Errorf("expected score 0.86, got %v", got.Score)
	}
	if !almostEqual(got.Variance, 0.01) {
		t.Errorf("expected variance 0.01, got %v", got.Variance)
	}
}

func TestUpdate_Streak(t *testing.T) {
	tests := []struct {
		name    string
		prior   int
		results []bool
		want    int
	}{
		{"all correct extends prior", 3, []bool{true, true}, 5},
		{"incorrect last resets", 3, []bool{true, true, false}, 0},
		{"incorrect first still resets", 3, []bool{false, true, true}, 0},
		{"single correct from zero", 0, []bool{true}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mastery.NewProgress("ub", "c")
			p.Streak = tt.prior

			got := mastery.Update(p, answers(tt.results...))
			if got.Streak != tt.want {
				t.Errorf("expected streak %d, got %d", tt.want, got.Streak)
			}
		})
	}
}

func TestUpdate_CountsPerQuestionType(t *testing.T) {
	p := mastery.NewProgress("ub-1", "c-1")
	batch := answers(true, false, true, true)
	batch[0].QuestionType = quiz.TypeTheoryChoice
	batch[1].QuestionType = quiz.TypePracticeCode
	batch[2].QuestionType = quiz.TypePracticeCode
	batch[3].QuestionType = "" // unresolved type still counts in the totals

	got := mastery.Update(p, batch)

	if a1 := got.Tally(quiz.TypeTheoryChoice); a1.Correct != 1 || a1.Asked != 1 {
		t.Errorf("expected A1 1/1, got %+v", a1)
	}
	if b2 := got.Tally(quiz.TypePracticeCode); b2.Correct != 1 || b2.Asked != 2 {
		t.Errorf("expected B2 1/2, got %+v", b2)
	}
	if a2 := got.Tally(quiz.TypeFillBlank); a2.Asked != 0 {
		t.Errorf("expected no A2 answers, got %+v", a2)
	}
	if got.Correct != 3 || got.Asked != 4 {
		t.Errorf("expected totals 3/4, got %d/%d", got.Correct, got.Asked)
	}
	if p.ByType != ([4]concept.TypeTally{}) {
		t.Errorf("input progress must not change, got %+v", p.ByType)
	}
}

func TestUpdate_NoAnswersIsNoop(t *testing.T) {
	p := concept.Progress{Correct: 2, Asked: 3, Alfa: 3, Beta: 2, Score: 0.6, Variance: 0.04, Streak: 1}

	if got := mastery.Update(p, nil); got != p {
		t.Errorf("expected unchanged progress, got %+v", got)
	}
}

func TestUpdate_ScoreAndVarianceBounds(t *testing.T) {
	p := mastery.NewProgress("ub", "c")
	batches := [][]bool{
		{false, false, false},
		{true, false},
		{true, true, true, true},
		{false},
	}

	for _, b := range batches {
		p = mastery.Update(p, answers(b...))
		if p.Score < 0 || p.Score > 1 {
			t.Fatalf("score out of range: %v", p.Score)
		}
		if p.Variance < 0 {
			t.Fatalf("negative variance: %v", p.Variance)
		}
		if p.Alfa <= 0 || p.Beta <= 0 {
			t.Fatalf("pseudo-counts must stay positive: %v/%v", p.Alfa, p.Beta)
		}
	}
}
