// Package scheduler decides which concepts the next quiz targets and how
// many questions each of them gets.
package scheduler

import (
	"math"
	"sort"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
)

// ceilEpsilon absorbs float noise so that an allocation landing exactly on
// an integer is not rounded up.
const ceilEpsilon = 1e-9

type Config struct {
	TopK              int
	ScoreWeight       float64
	UncertaintyWeight float64
	TargetScore       float64
	QuestionsPerPoint float64
	MinQuestions      int
	MaxQuestions      int
}

func DefaultConfig() Config {
	return Config{
		TopK:              3,
		ScoreWeight:       0.6,
		UncertaintyWeight: 0.3,
		TargetScore:       0.8,
		QuestionsPerPoint: 8,
		MinQuestions:      2,
		MaxQuestions:      6,
	}
}

// Ranked is a concept progress selected for the next quiz.
type Ranked struct {
	Progress concept.Progress
	Priority float64
}

type Scheduler struct {
	cfg Config
}

func New(cfg Config) *Scheduler {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	return &Scheduler{cfg: cfg}
}

// Priority is higher for concepts with a low score or an uncertain estimate.
func (s *Scheduler) Priority(p concept.Progress) float64 {
	return s.cfg.ScoreWeight*(1-p.Score) + s.cfg.UncertaintyWeight*math.Sqrt(p.Variance)
}

// Select returns up to k unmastered concepts, most urgent first. Equal
// priorities are ordered by concept id.
func (s *Scheduler) Select(progresses []concept.Progress, k int) []Ranked {
	if k <= 0 {
		return nil
	}

	ranked := make([]Ranked, 0, len(progresses))
	for _, p := range progresses {
		if p.Mastered {
			continue
		}
		ranked = append(ranked, Ranked{Progress: p, Priority: s.Priority(p)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Progress.ConceptID < ranked[j].Progress.ConceptID
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// QuestionCount scales the question budget with the distance to the
// mastery score, clamped to [MinQuestions, MaxQuestions].
func (s *Scheduler) QuestionCount(score float64) int {
	deficit := math.Max(0, s.cfg.TargetScore-score)
	n := s.cfg.QuestionsPerPoint * deficit
	n = math.Min(math.Max(n, float64(s.cfg.MinQuestions)), float64(s.cfg.MaxQuestions))
	return int(math.Ceil(n - ceilEpsilon))
}

func (s *Scheduler) Allocate(r Ranked) int {
	return s.QuestionCount(r.Progress.Score)
}

// Plan selects the configured number of concepts and allocates their
// question budgets. An empty plan means nothing is left to practice.
func (s *Scheduler) Plan(progresses []concept.Progress) []quiz.PlannedConcept {
	selected := s.Select(progresses, s.cfg.TopK)
	plan := make([]quiz.PlannedConcept, 0, len(selected))
	for _, r := range selected {
		plan = append(plan, quiz.PlannedConcept{
			ConceptID:     r.Progress.ConceptID,
			Score:         r.Progress.Score,
			Priority:      r.Priority,
			QuestionCount: s.Allocate(r),
		})
	}
	return plan
}
