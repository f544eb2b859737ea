package quiz

// QuestionType classifies generated questions.
type QuestionType string

const (
	TypeTheoryChoice   QuestionType = "A1" // theoretical multiple choice
	TypeFillBlank      QuestionType = "A2" // fill-in-the-blank
	TypePracticeChoice QuestionType = "B1" // multiple choice over a code snippet
	TypePracticeCode   QuestionType = "B2" // write the missing code
)

// QuestionTypes lists every type in canonical order.
var QuestionTypes = []QuestionType{TypeTheoryChoice, TypeFillBlank, TypePracticeChoice, TypePracticeCode}

func (t QuestionType) Valid() bool {
	switch t {
	case TypeTheoryChoice, TypeFillBlank, TypePracticeChoice, TypePracticeCode:
		return true
	}
	return false
}

// Index returns the position of the type in QuestionTypes, or -1.
func (t QuestionType) Index() int {
	for i, qt := range QuestionTypes {
		if qt == t {
			return i
		}
	}
	return -1
}

// HasOptions reports whether questions of this type are multiple choice.
func (t QuestionType) HasOptions() bool {
	return t == TypeTheoryChoice || t == TypePracticeChoice
}

// NeedsCode reports whether questions of this type carry a code snippet.
func (t QuestionType) NeedsCode() bool {
	return t == TypePracticeChoice || t == TypePracticeCode
}

type Question struct {
	ID                string
	BaseQuizID        string
	ConceptID         string
	QuestionText      string
	CorrectAnswerText string
	OrderIndex        int
	CodeSnippet       string
	QuestionType      QuestionType
	Options           []Option
}

type Option struct {
	ID         string
	QuestionID string
	OptionText string
	IsCorrect  bool
}

// CorrectOption returns the option flagged correct, or nil for open questions.
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// TypeMix is the number of questions requested per type.
type TypeMix struct {
	TheoryChoice   int `json:"A1"`
	FillBlank      int `json:"A2"`
	PracticeChoice int `json:"B1"`
	PracticeCode   int `json:"B2"`
}

func (m TypeMix) Total() int {
	return m.TheoryChoice + m.FillBlank + m.PracticeChoice + m.PracticeCode
}

// Count returns the requested number for a single type.
func (m TypeMix) Count(t QuestionType) int {
	switch t {
	case TypeTheoryChoice:
		return m.TheoryChoice
	case TypeFillBlank:
		return m.FillBlank
	case TypePracticeChoice:
		return m.PracticeChoice
	case TypePracticeCode:
		return m.PracticeCode
	}
	return 0
}
