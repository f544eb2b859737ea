package generator

import (
	"fmt"
	"strings"
)

// ============================================================================
// Prompt builders, kept short and directive for small (4-8B) models.
// The JSON schema always comes last so it is the last thing the model sees.
// ============================================================================

func buildMaterialPrompt(chunks, siblings []string) string {
	var b strings.Builder
	b.WriteString("/no_think\nYou are an expert educational content creator. Study the material below; you will write quiz questions from it.\n")

	if len(siblings) > 0 {
		fmt.Fprintf(&b, "\nOther concepts of this block (context only, do not test them): %s\n", strings.Join(siblings, ", "))
	}

	b.WriteString("\nMATERIAL:\n")
	if len(chunks) == 0 {
		b.WriteString("(no material found, rely on general knowledge of the concept)\n")
	}
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	return b.String()
}

func buildQuestionsPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, `/no_think
Write quiz questions that test the concept %q.

Generate EXACTLY:
- %d x A1 (theory, multiple choice)
- %d x A2 (fill in the blank)
- %d x B1 (practice, multiple choice about a code snippet)
- %d x B2 (practice, write the missing code)

RULES:
- Medium difficulty. Every correct answer must be unambiguous.
- The answer must NOT appear in the question text or the code snippet.
- A1: codeSnippet is "", 4 options, exactly 1 correct, correctAnswerText equals the correct optionText.
- A2: questionText contains exactly one blank "____", options is [], codeSnippet is "", correctAnswerText is one word.
- B1: non-empty codeSnippet, 4 options, exactly 1 correct, correctAnswerText equals the correct optionText.
- B2: codeSnippet contains the line "/* your code here */", options is [], correctAnswerText is the 1-2 lines of code to write.
`,
		req.Concept,
		req.Mix.TheoryChoice, req.Mix.FillBlank, req.Mix.PracticeChoice, req.Mix.PracticeCode,
	)

	if len(req.History) > 0 {
		b.WriteString("\nALREADY ASKED (do not repeat these questions, their answers, or their scenarios):\n")
		for i, h := range req.History {
			result := "answered wrong"
			if h.IsCorrect {
				result = "answered right"
			}
			fmt.Fprintf(&b, "%d. %s (answer: %s; %s)\n", i+1, h.QuestionText, h.CorrectAnswerText, result)
		}
	}

	b.WriteString(`
Respond with ONLY this JSON, no explanation, no markdown:
{"questions": [{"questionType": "A1", "questionText": "", "codeSnippet": "", "correctAnswerText": "", "options": [{"optionText": "", "isCorrect": false}]}]}`)

	return b.String()
}
