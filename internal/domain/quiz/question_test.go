package quiz_test

import (
	"testing"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
)

func TestQuestionType_Valid(t *testing.T) {
	for _, qt := range quiz.QuestionTypes {
		if !qt.Valid() {
			t.Errorf("expected %s to be valid", qt)
		}
	}
	if quiz.QuestionType("C1").Valid() {
		t.Error("expected C1 to be invalid")
	}
}

func TestQuestionType_Shape(t *testing.T) {
	tests := []struct {
		qt           quiz.QuestionType
		hasOptions   bool
		needsSnippet bool
	}{
		{quiz.TypeTheoryChoice, true, false},
		{quiz.TypeFillBlank, false, false},
		{quiz.TypePracticeChoice, true, true},
		{quiz.TypePracticeCode, false, true},
	}

	for _, tt := range tests {
		if got := tt.qt.HasOptions(); got != tt.hasOptions {
			t.Errorf("%s.HasOptions() = %v, want %v", tt.qt, got, tt.hasOptions)
		}
		if got := tt.qt.NeedsCode(); got != tt.needsSnippet {
			t.Errorf("%s.NeedsCode() = %v, want %v", tt.qt, got, tt.needsSnippet)
		}
	}
}

func TestCorrectOption(t *testing.T) {
	q := quiz.Question{
		Options: []quiz.Option{
			{OptionText: "make", IsCorrect: false},
			{OptionText: "go", IsCorrect: true},
		},
	}

	opt := q.CorrectOption()
	if opt == nil || opt.OptionText != "go" {
		t.Fatalf("expected correct option %q, got %+v", "go", opt)
	}

	open := quiz.Question{}
	if open.CorrectOption() != nil {
		t.Error("expected nil correct option for open question")
	}
}

func TestTypeMix(t *testing.T) {
	m := quiz.TypeMix{TheoryChoice: 2, FillBlank: 1, PracticeCode: 3}

	if m.Total() != 6 {
		t.Errorf("expected total 6, got %d", m.Total())
	}
	if m.Count(quiz.TypePracticeCode) != 3 {
		t.Errorf("expected 3 B2 questions, got %d", m.Count(quiz.TypePracticeCode))
	}
	if m.Count(quiz.TypePracticeChoice) != 0 {
		t.Errorf("expected 0 B1 questions, got %d", m.Count(quiz.TypePracticeChoice))
	}
}

func TestQuestionType_Index(t *testing.T) {
	for i, qt := range quiz.QuestionTypes {
		if got := qt.Index(); got != i {
			t.Errorf("%s.Index() = %d, want %d", qt, got, i)
		}
	}
	if got := quiz.QuestionType("C1").Index(); got != -1 {
		t.Errorf("expected -1 for unknown type, got %d", got)
	}
}
