package scheduler_test

import (
	"testing"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/scheduler"
)

func TestMix(t *testing.T) {
	tests := []struct {
		name  string
		count int
		score float64
		want  quiz.TypeMix
	}{
		{"weak concept leans on theory", 2, 0.3, quiz.TypeMix{TheoryChoice: 1, FillBlank: 1}},
		{"weak concept full budget", 6, 0.0, quiz.TypeMix{TheoryChoice: 2, FillBlank: 2, PracticeChoice: 1, PracticeCode: 1}},
		{"balanced even split", 4, 0.5, quiz.TypeMix{TheoryChoice: 1, FillBlank: 1, PracticeChoice: 1, PracticeCode: 1}},
		{"balanced remainder in canonical order", 3, 0.4, quiz.TypeMix{TheoryChoice: 1, FillBlank: 1, PracticeChoice: 1}},
		{"strong concept leans on practice", 6, 0.9, quiz.TypeMix{TheoryChoice: 1, FillBlank: 1, PracticeChoice: 2, PracticeCode: 2}},
		{"strong concept minimum budget", 2, 0.75, quiz.TypeMix{PracticeChoice: 1, PracticeCode: 1}},
		{"zero budget", 0, 0.5, quiz.TypeMix{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scheduler.Mix(tt.count, tt.score)
			if got != tt.want {
				t.Errorf("Mix(%d, %v) = %+v, want %+v", tt.count, tt.score, got, tt.want)
			}
			if got.Total() != tt.count {
				t.Errorf("expected total %d, got %d", tt.count, got.Total())
			}
		})
	}
}
