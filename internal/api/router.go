// internal/api/router.go
package api

import (
	"net/http"

	"github.com/remaimber-it/mastery/internal/infrastructure/metrics"
)

func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Blocks
	mux.HandleFunc("POST /blocks/{blockID}/concepts", h.createConcepts)
	mux.HandleFunc("GET /blocks/{blockID}/concepts", h.listConcepts)
	mux.HandleFunc("POST /blocks/{blockID}/chunks", h.indexChunks)
	mux.HandleFunc("POST /blocks/{blockID}/placement-quiz", h.createPlacementQuiz)
	mux.HandleFunc("POST /blocks/{blockID}/attempts", h.startBlock)

	// User blocks
	mux.HandleFunc("GET /user-blocks/{userBlockID}/concept-progress", h.getConceptProgress)
	mux.HandleFunc("GET /user-blocks/{userBlockID}/next-quiz", h.getNextQuiz)

	// Adaptive quizzes
	mux.HandleFunc("GET /adaptive-quizzes/{quizID}", h.getAdaptiveQuiz)
	mux.HandleFunc("POST /adaptive-quizzes/{quizID}/answers", h.submitAnswer)
	mux.HandleFunc("POST /adaptive-quizzes/{quizID}/finish", h.finishAdaptiveQuiz)
}
