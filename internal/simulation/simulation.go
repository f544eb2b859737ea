// simulation/simulation.go
// Package simulation plays a synthetic learner through a block so the
// estimator, the scheduler and the quiz lifecycle can be watched end to
// end without a model behind them.
package simulation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/generator"
	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/mastery"
	"github.com/remaimber-it/mastery/internal/scheduler"
	"github.com/remaimber-it/mastery/internal/search"
	"github.com/remaimber-it/mastery/internal/service"
	"github.com/remaimber-it/mastery/internal/store"
)

type Config struct {
	DatabasePath string
	Concepts     []string
	// Probability of a correct answer per concept name. Concepts not
	// listed use DefaultAccuracy.
	Accuracy        map[string]float64
	DefaultAccuracy float64
	MaxQuizzes      int
	Seed            int64
	// Placement opens the block with a shared placement quiz.
	Placement bool
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:    ":memory:",
		Concepts:        []string{"goroutines", "channels", "select"},
		DefaultAccuracy: 0.85,
		MaxQuizzes:      20,
		Seed:            1,
	}
}

type ConceptSnapshot struct {
	Name     string
	Asked    int
	Score    float64
	Variance float64
	Mastered bool
}

// Round is the outcome of one finished quiz.
type Round struct {
	Version   int
	Questions int
	Correct   int
	Concepts  []ConceptSnapshot
}

type Report struct {
	Rounds   []Round
	Mastered bool
}

// Run starts a block for a synthetic learner and keeps generating,
// answering and finishing quizzes until the block is mastered or
// MaxQuizzes is reached.
func Run(ctx context.Context, cfg Config, log *logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.NewNop()
	}

	db, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	searcher, err := search.NewSQLite(db.DB())
	if err != nil {
		return nil, err
	}

	lc := service.NewQuizLifecycle(service.Deps{
		Store:     db,
		Evaluator: mastery.NewEvaluator(mastery.DefaultCriteria()),
		Scheduler: scheduler.New(scheduler.DefaultConfig()),
		Searcher:  searcher,
		Generator: cannedGenerator{},
		Logger:    log,
	}, service.DefaultOptions())
	content := service.NewContentService(db, searcher, log)

	const blockID = "simulated-block"
	inputs := make([]service.ConceptInput, len(cfg.Concepts))
	for i, name := range cfg.Concepts {
		inputs[i] = service.ConceptInput{Name: name, DifficultyIndex: i}
	}
	created, err := content.CreateConcepts(ctx, blockID, inputs)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(created))
	for _, c := range created {
		names[c.ID] = c.Name
	}

	if cfg.Placement {
		if _, err := lc.CreatePlacementQuiz(ctx, blockID); err != nil {
			return nil, err
		}
	}

	started, err := lc.StartBlock(ctx, "simulated-learner", blockID)
	if err != nil {
		return nil, err
	}

	player := &learner{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed)), names: names}
	report := &Report{}
	current := started.Quiz

	for i := 0; i < cfg.MaxQuizzes && current != nil; i++ {
		if !current.ReadyForAnswering {
			task, err := db.GetGenerationByQuiz(ctx, current.ID)
			if err != nil {
				return nil, err
			}
			if err := lc.RunGeneration(ctx, task); err != nil {
				return nil, fmt.Errorf("generate quiz v%d: %w", current.Version, err)
			}
		}

		cq, err := lc.GetComplexAdaptiveQuiz(ctx, current.ID)
		if err != nil {
			return nil, err
		}

		round := Round{Version: current.Version, Questions: len(cq.Questions)}
		for _, q := range cq.Questions {
			a, err := lc.SubmitAnswer(ctx, current.ID, q.ID, player.answer(q))
			if err != nil {
				return nil, err
			}
			if a.IsCorrect {
				round.Correct++
			}
		}

		fin, err := lc.FinishAdaptiveQuiz(ctx, current.ID)
		if err != nil {
			return nil, err
		}

		progress, err := lc.GetConceptProgress(ctx, started.UserBlock.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range progress.Concepts {
			round.Concepts = append(round.Concepts, ConceptSnapshot{
				Name:     c.Name,
				Asked:    c.Asked,
				Score:    c.Score,
				Variance: c.Variance,
				Mastered: c.Mastered,
			})
		}
		report.Rounds = append(report.Rounds, round)

		log.Info("simulated quiz finished",
			"version", round.Version,
			"questions", round.Questions,
			"correct", round.Correct,
			"block_mastered", fin.BlockMastered,
		)

		report.Mastered = fin.BlockMastered
		current = fin.Next
	}

	return report, nil
}

// ── Learner ─────────────────────────────────────────────────────────────────

type learner struct {
	cfg Config
	rng *rand.Rand

	names map[string]string // concept id -> name
}

func (l *learner) accuracy(conceptID string) float64 {
	if p, ok := l.cfg.Accuracy[l.names[conceptID]]; ok {
		return p
	}
	return l.cfg.DefaultAccuracy
}

func (l *learner) answer(q quiz.Question) string {
	if l.rng.Float64() >= l.accuracy(q.ConceptID) {
		return "not sure"
	}
	if opt := q.CorrectOption(); opt != nil {
		return opt.OptionText
	}
	return q.CorrectAnswerText
}

// ── Generator ───────────────────────────────────────────────────────────────

// cannedGenerator returns placeholder questions in the requested mix.
type cannedGenerator struct{}

func (cannedGenerator) Generate(_ context.Context, req generator.Request) ([]generator.Question, error) {
	var out []generator.Question
	for _, t := range quiz.QuestionTypes {
		for i := 0; i < req.Mix.Count(t); i++ {
			q := generator.Question{
				QuestionType:      t,
				QuestionText:      fmt.Sprintf("[%s] question %d about %s", t, i+1, req.Concept),
				CorrectAnswerText: req.Concept,
			}
			if t.NeedsCode() {
				q.CodeSnippet = "// " + req.Concept
			}
			if t.HasOptions() {
				q.Options = []generator.Option{
					{OptionText: req.Concept, IsCorrect: true},
					{OptionText: "something else"},
				}
			}
			out = append(out, q)
		}
	}
	return out, nil
}
