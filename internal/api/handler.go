// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/remaimber-it/mastery/internal/grader"
	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/service"
	"github.com/remaimber-it/mastery/internal/store"
)

// Handler holds all dependencies needed by HTTP handlers.
type Handler struct {
	lifecycle *service.QuizLifecycle
	content   *service.ContentService
	logger    *logger.Logger
}

func NewHandler(lifecycle *service.QuizLifecycle, content *service.ContentService, log *logger.Logger) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		content:   content,
		logger:    log,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, ErrorResponse{Error: msg})
}

// decodeJSON decodes the request body into v. On failure it writes a 400
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// handleError maps service and store errors to HTTP responses. Returns true
// if an error was handled (caller should return).
func (h *Handler) handleError(w http.ResponseWriter, err error, entity string) bool {
	if err == nil {
		return false
	}

	var gradeErr *grader.GradeError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, service.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrQuestionNotInQuiz):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrQuizNotReady),
		errors.Is(err, service.ErrQuizCompleted),
		errors.Is(err, service.ErrBlockMastered),
		errors.Is(err, service.ErrAlreadyAnswered),
		errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &gradeErr):
		h.logger.Warn("grading unavailable", "error", err)
		respondError(w, http.StatusBadGateway, "grading is unavailable, try again")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Error("request failed", "error", err, "entity", entity)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
	return true
}
