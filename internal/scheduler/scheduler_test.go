package scheduler_test

import (
	"testing"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/scheduler"
)

func TestSelect_TopOnePicksWeakest(t *testing.T) {
	s := scheduler.New(scheduler.DefaultConfig())
	ps := []concept.Progress{
		{ConceptID: "strong", Score: 0.9, Variance: 0.02},
		{ConceptID: "mid", Score: 0.5, Variance: 0.02},
		{ConceptID: "weak", Score: 0.3, Variance: 0.02},
	}

	got := s.Select(ps, 1)
	if len(got) != 1 || got[0].Progress.ConceptID != "weak" {
		t.Fatalf("expected weak concept, got %+v", got)
	}
}

func TestSelect_SkipsMasteredAndLimits(t *testing.T) {
	s := scheduler.New(scheduler.DefaultConfig())
	ps := []concept.Progress{
		{ConceptID: "a", Score: 0.1, Mastered: true},
		{ConceptID: "b", Score: 0.2},
		{ConceptID: "c", Score: 0.4},
		{ConceptID: "d", Score: 0.6},
		{ConceptID: "e", Score: 0.7},
	}

	got := s.Select(ps, 3)
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %d concepts, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].Progress.ConceptID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].Progress.ConceptID)
		}
	}
}

func TestSelect_TieBreakByConceptID(t *testing.T) {
	s := scheduler.New(scheduler.DefaultConfig())
	ps := []concept.Progress{
		{ConceptID: "zeta", Score: 0.5, Variance: 0.04},
		{ConceptID: "alpha", Score: 0.5, Variance: 0.04},
		{ConceptID: "mu", Score: 0.5, Variance: 0.04},
	}

	got := s.Select(ps, 2)
	if got[0].Progress.ConceptID != "alpha" || got[1].Progress.ConceptID != "mu" {
		t.Errorf("expected alpha, mu; got %s, %s", got[0].Progress.ConceptID, got[1].Progress.ConceptID)
	}
}

func TestSelect_AllMasteredIsEmpty(t *testing.T) {
	s := scheduler.New(scheduler.DefaultConfig())
	got := s.Select([]concept.Progress{{ConceptID: "a", Mastered: true}}, 3)
	if len(got) != 0 {
		t.Errorf("expected empty selection, got %+v", got)
	}
}

func TestPriority(t *testing.T) {
	s := scheduler.New(scheduler.DefaultConfig())

	// 0.6*(1-0.5) + 0.3*sqrt(0.04) = 0.3 + 0.06
	got := s.Priority(concept.Progress{Score: 0.5, Variance: 0.04})
	if got < 0.3599 || got > 0.3601 {
		t.Errorf("expected priority 0.36, got %v", got)
	}
}

func TestQuestionCount(t *testing.T) {
	s := scheduler.New(scheduler.DefaultConfig())

	tests := []struct {
		score float64
		want  int
	}{
		{0.8, 2},
		{0.0, 6},
		{0.9, 2},
		{0.55, 2},
		{0.5, 3},
		{0.3, 4},
		{0.1, 6},
	}

	for _, tt := range tests {
		if got := s.QuestionCount(tt.score); got != tt.want {
			t.Errorf("QuestionCount(%v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestPlan(t *testing.T) {
	cfg := scheduler.DefaultConfig()
	cfg.TopK = 2
	s := scheduler.New(cfg)

	plan := s.Plan([]concept.Progress{
		{ConceptID: "a", Score: 0.0, Variance: 0.08},
		{ConceptID: "b", Score: 0.5, Variance: 0.08},
		{ConceptID: "c", Score: 0.9, Variance: 0.08},
	})

	if len(plan) != 2 {
		t.Fatalf("expected 2 planned concepts, got %d", len(plan))
	}
	if plan[0].ConceptID != "a" || plan[0].QuestionCount != 6 {
		t.Errorf("unexpected first entry: %+v", plan[0])
	}
	if plan[1].ConceptID != "b" || plan[1].QuestionCount != 3 {
		t.Errorf("unexpected second entry: %+v", plan[1])
	}
}
