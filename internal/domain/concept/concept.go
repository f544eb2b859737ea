package concept

import (
	"errors"
	"strings"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/id"
)

// Concept is an atomic unit of learnable material within a block.
type Concept struct {
	ID              string
	BlockID         string
	Name            string
	DifficultyIndex int
}

func New(blockID, name string, difficultyIndex int) (*Concept, error) {
	name = strings.TrimSpace(name)
	if blockID == "" {
		return nil, errors.New("concept block id cannot be empty")
	}
	if name == "" {
		return nil, errors.New("concept name cannot be empty")
	}
	return &Concept{
		ID:              id.GenerateID(),
		BlockID:         blockID,
		Name:            name,
		DifficultyIndex: difficultyIndex,
	}, nil
}

// Progress is a learner's Beta-distribution estimate for one concept.
// Alfa and Beta are pseudo-counts; Score and Variance are derived from them
// and stored rounded to two decimals.
type Progress struct {
	ID          string
	UserBlockID string
	ConceptID   string
	Correct     int
	Asked       int
	Alfa        float64
	Beta        float64
	Score       float64
	Variance    float64
	Streak      int
	Mastered    bool
	// ByType holds per question type counts, indexed like quiz.QuestionTypes.
	ByType [4]TypeTally
}

// TypeTally counts the answers given to one question type.
type TypeTally struct {
	Correct int
	Asked   int
}

// Tally returns the counts for a question type. Unknown types count zero.
func (p Progress) Tally(t quiz.QuestionType) TypeTally {
	i := t.Index()
	if i < 0 || i >= len(p.ByType) {
		return TypeTally{}
	}
	return p.ByType[i]
}
