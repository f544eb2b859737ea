package api

import (
	"net/http"
	"time"

	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/service"
)

// ── Request / Response types ────────────────────────────────────────────────

type OptionResponse struct {
	ID         string `json:"id"`
	OptionText string `json:"option_text"`
	IsCorrect  *bool  `json:"is_correct,omitempty"`
}

type QuestionResponse struct {
	ID                string           `json:"id"`
	ConceptID         string           `json:"concept_id"`
	QuestionType      string           `json:"question_type"`
	QuestionText      string           `json:"question_text"`
	CodeSnippet       string           `json:"code_snippet,omitempty"`
	CorrectAnswerText string           `json:"correct_answer_text,omitempty"`
	OrderIndex        int              `json:"order_index"`
	Options           []OptionResponse `json:"options,omitempty"`
}

type AnswerResponse struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"question_id"`
	AnswerText string    `json:"answer_text"`
	IsCorrect  bool      `json:"is_correct"`
	CreatedAt  time.Time `json:"created_at"`
}

type AdaptiveQuizResponse struct {
	ID                string             `json:"id"`
	UserBlockID       string             `json:"user_block_id"`
	Version           int                `json:"version"`
	Status            string             `json:"status"`
	ReadyForAnswering bool               `json:"ready_for_answering"`
	IsCompleted       bool               `json:"is_completed"`
	Error             string             `json:"error,omitempty"`
	NextQuestionID    string             `json:"next_question_id,omitempty"`
	Questions         []QuestionResponse `json:"questions"`
	Answers           []AnswerResponse   `json:"answers"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type FinishQuizResponse struct {
	QuizID        string             `json:"quiz_id"`
	BlockMastered bool               `json:"block_mastered"`
	NextQuizID    string             `json:"next_quiz_id,omitempty"`
	NextVersion   int                `json:"next_version,omitempty"`
	Updated       []ProgressResponse `json:"updated"`
}

// toQuizResponse hides the solutions until the quiz is completed.
func toQuizResponse(cq *service.ComplexQuiz) AdaptiveQuizResponse {
	reveal := cq.Quiz.IsCompleted
	resp := AdaptiveQuizResponse{
		ID:                cq.Quiz.ID,
		UserBlockID:       cq.Quiz.UserBlockID,
		Version:           cq.Quiz.Version,
		Status:            string(cq.Status),
		ReadyForAnswering: cq.Quiz.ReadyForAnswering,
		IsCompleted:       cq.Quiz.IsCompleted,
		Error:             cq.Error,
		Questions:         make([]QuestionResponse, len(cq.Questions)),
		Answers:           make([]AnswerResponse, len(cq.Answers)),
	}
	if cq.Status == service.StatusReady {
		resp.NextQuestionID = cq.NextQuestionID()
	}

	for i, q := range cq.Questions {
		resp.Questions[i] = toQuestionResponse(q, reveal)
	}
	for i, a := range cq.Answers {
		resp.Answers[i] = toAnswerResponse(a)
	}
	return resp
}

func toQuestionResponse(q quiz.Question, reveal bool) QuestionResponse {
	qr := QuestionResponse{
		ID:           q.ID,
		ConceptID:    q.ConceptID,
		QuestionType: string(q.QuestionType),
		QuestionText: q.QuestionText,
		CodeSnippet:  q.CodeSnippet,
		OrderIndex:   q.OrderIndex,
	}
	if reveal {
		qr.CorrectAnswerText = q.CorrectAnswerText
	}
	for _, o := range q.Options {
		opt := OptionResponse{ID: o.ID, OptionText: o.OptionText}
		if reveal {
			correct := o.IsCorrect
			opt.IsCorrect = &correct
		}
		qr.Options = append(qr.Options, opt)
	}
	return qr
}

func toAnswerResponse(a quiz.Answer) AnswerResponse {
	return AnswerResponse{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		AnswerText: a.AnswerText,
		IsCorrect:  a.IsCorrect,
		CreatedAt:  a.CreatedAt,
	}
}

// ── Handlers ────────────────────────────────────────────────────────────────

// GET /adaptive-quizzes/{quizID}
func (h *Handler) getAdaptiveQuiz(w http.ResponseWriter, r *http.Request) {
	cq, err := h.lifecycle.GetComplexAdaptiveQuiz(r.Context(), r.PathValue("quizID"))
	if h.handleError(w, err, "quiz") {
		return
	}
	respondJSON(w, http.StatusOK, toQuizResponse(cq))
}

// GET /user-blocks/{userBlockID}/next-quiz
func (h *Handler) getNextQuiz(w http.ResponseWriter, r *http.Request) {
	cq, err := h.lifecycle.GetNextQuiz(r.Context(), r.PathValue("userBlockID"))
	if h.handleError(w, err, "quiz") {
		return
	}
	respondJSON(w, http.StatusOK, toQuizResponse(cq))
}

// POST /adaptive-quizzes/{quizID}/answers
func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.QuestionID == "" {
		respondError(w, http.StatusBadRequest, "question_id is required")
		return
	}

	a, err := h.lifecycle.SubmitAnswer(r.Context(), r.PathValue("quizID"), req.QuestionID, req.Answer)
	if h.handleError(w, err, "quiz") {
		return
	}
	respondJSON(w, http.StatusCreated, toAnswerResponse(*a))
}

// POST /adaptive-quizzes/{quizID}/finish
func (h *Handler) finishAdaptiveQuiz(w http.ResponseWriter, r *http.Request) {
	res, err := h.lifecycle.FinishAdaptiveQuiz(r.Context(), r.PathValue("quizID"))
	if h.handleError(w, err, "quiz") {
		return
	}

	resp := FinishQuizResponse{
		QuizID:        res.Quiz.ID,
		BlockMastered: res.BlockMastered,
		Updated:       make([]ProgressResponse, len(res.Updated)),
	}
	if res.Next != nil {
		resp.NextQuizID = res.Next.ID
		resp.NextVersion = res.Next.Version
	}
	for i, p := range res.Updated {
		resp.Updated[i] = toProgressResponse(p)
	}
	respondJSON(w, http.StatusOK, resp)
}
