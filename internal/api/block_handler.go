package api

import (
	"net/http"

	"github.com/remaimber-it/mastery/internal/domain/concept"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/service"
)

// ── Request / Response types ────────────────────────────────────────────────

type ConceptRequest struct {
	Name            string `json:"name"`
	DifficultyIndex int    `json:"difficulty_index"`
}

type CreateConceptsRequest struct {
	Concepts []ConceptRequest `json:"concepts"`
}

type ConceptResponse struct {
	ID              string `json:"id"`
	BlockID         string `json:"block_id"`
	Name            string `json:"name"`
	DifficultyIndex int    `json:"difficulty_index"`
}

type IndexChunksRequest struct {
	Texts []string `json:"texts"`
}

type IndexChunksResponse struct {
	ChunkIDs []string `json:"chunk_ids"`
}

type StartBlockRequest struct {
	UserID string `json:"user_id"`
}

type StartBlockResponse struct {
	UserBlockID string             `json:"user_block_id"`
	QuizID      string             `json:"quiz_id,omitempty"`
	Version     int                `json:"version,omitempty"`
	Resumed     bool               `json:"resumed"`
	Progress    []ProgressResponse `json:"progress"`
}

type PlacementQuizResponse struct {
	ID         string             `json:"id"`
	BlockID    string             `json:"block_id"`
	BaseQuizID string             `json:"base_quiz_id"`
	Questions  []QuestionResponse `json:"questions"`
}

type TypeTallyResponse struct {
	Correct int `json:"correct"`
	Asked   int `json:"asked"`
}

type ProgressResponse struct {
	ConceptID     string  `json:"concept_id"`
	Name          string  `json:"name,omitempty"`
	Correct       int     `json:"correct"`
	Asked         int     `json:"asked"`
	Alfa          float64 `json:"alfa"`
	Beta          float64 `json:"beta"`
	Score         float64 `json:"score"`
	Variance      float64 `json:"variance"`
	Streak        int     `json:"streak"`
	Mastered      bool    `json:"mastered"`
	IntervalWidth float64 `json:"interval_width,omitempty"`

	ByType map[string]TypeTallyResponse `json:"by_type"`
}

type ConceptProgressResponse struct {
	UserBlockID string             `json:"user_block_id"`
	Completed   bool               `json:"completed"`
	Concepts    []ProgressResponse `json:"concepts"`
}

func toConceptResponse(c concept.Concept) ConceptResponse {
	return ConceptResponse{ID: c.ID, BlockID: c.BlockID, Name: c.Name, DifficultyIndex: c.DifficultyIndex}
}

func toProgressResponse(p concept.Progress) ProgressResponse {
	resp := ProgressResponse{
		ConceptID: p.ConceptID,
		Correct:   p.Correct,
		Asked:     p.Asked,
		Alfa:      p.Alfa,
		Beta:      p.Beta,
		Score:     p.Score,
		Variance:  p.Variance,
		Streak:    p.Streak,
		Mastered:  p.Mastered,
		ByType:    make(map[string]TypeTallyResponse, len(quiz.QuestionTypes)),
	}
	for _, qt := range quiz.QuestionTypes {
		t := p.Tally(qt)
		resp.ByType[string(qt)] = TypeTallyResponse{Correct: t.Correct, Asked: t.Asked}
	}
	return resp
}

// ── Handlers ────────────────────────────────────────────────────────────────

// POST /blocks/{blockID}/concepts
func (h *Handler) createConcepts(w http.ResponseWriter, r *http.Request) {
	var req CreateConceptsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inputs := make([]service.ConceptInput, len(req.Concepts))
	for i, c := range req.Concepts {
		inputs[i] = service.ConceptInput{Name: c.Name, DifficultyIndex: c.DifficultyIndex}
	}

	created, err := h.content.CreateConcepts(r.Context(), r.PathValue("blockID"), inputs)
	if h.handleError(w, err, "block") {
		return
	}

	response := make([]ConceptResponse, len(created))
	for i, c := range created {
		response[i] = toConceptResponse(c)
	}
	respondJSON(w, http.StatusCreated, response)
}

// GET /blocks/{blockID}/concepts
func (h *Handler) listConcepts(w http.ResponseWriter, r *http.Request) {
	concepts, err := h.content.ListConcepts(r.Context(), r.PathValue("blockID"))
	if h.handleError(w, err, "block") {
		return
	}

	response := make([]ConceptResponse, len(concepts))
	for i, c := range concepts {
		response[i] = toConceptResponse(c)
	}
	respondJSON(w, http.StatusOK, response)
}

// POST /blocks/{blockID}/chunks
func (h *Handler) indexChunks(w http.ResponseWriter, r *http.Request) {
	var req IndexChunksRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Texts) == 0 {
		respondError(w, http.StatusBadRequest, "texts are required")
		return
	}

	ids, err := h.content.IndexChunks(r.Context(), r.PathValue("blockID"), req.Texts)
	if h.handleError(w, err, "block") {
		return
	}
	respondJSON(w, http.StatusCreated, IndexChunksResponse{ChunkIDs: ids})
}

// POST /blocks/{blockID}/attempts
func (h *Handler) startBlock(w http.ResponseWriter, r *http.Request) {
	var req StartBlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	res, err := h.lifecycle.StartBlock(r.Context(), req.UserID, r.PathValue("blockID"))
	if h.handleError(w, err, "block") {
		return
	}

	progress := make([]ProgressResponse, len(res.Progress))
	for i, p := range res.Progress {
		progress[i] = toProgressResponse(p)
	}
	resp := StartBlockResponse{
		UserBlockID: res.UserBlock.ID,
		Resumed:     res.Resumed,
		Progress:    progress,
	}
	if res.Quiz != nil {
		resp.QuizID = res.Quiz.ID
		resp.Version = res.Quiz.Version
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	respondJSON(w, status, resp)
}

// POST /blocks/{blockID}/placement-quiz
func (h *Handler) createPlacementQuiz(w http.ResponseWriter, r *http.Request) {
	res, err := h.lifecycle.CreatePlacementQuiz(r.Context(), r.PathValue("blockID"))
	if h.handleError(w, err, "block") {
		return
	}

	resp := PlacementQuizResponse{
		ID:         res.Quiz.ID,
		BlockID:    res.Quiz.BlockID,
		BaseQuizID: res.Quiz.BaseQuizID,
		Questions:  make([]QuestionResponse, len(res.Questions)),
	}
	for i, q := range res.Questions {
		resp.Questions[i] = toQuestionResponse(q, false)
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, resp)
}

// GET /user-blocks/{userBlockID}/concept-progress
func (h *Handler) getConceptProgress(w http.ResponseWriter, r *http.Request) {
	bp, err := h.lifecycle.GetConceptProgress(r.Context(), r.PathValue("userBlockID"))
	if h.handleError(w, err, "user block") {
		return
	}

	concepts := make([]ProgressResponse, len(bp.Concepts))
	for i, c := range bp.Concepts {
		concepts[i] = toProgressResponse(c.Progress)
		concepts[i].Name = c.Name
		concepts[i].IntervalWidth = c.IntervalWidth
	}
	respondJSON(w, http.StatusOK, ConceptProgressResponse{
		UserBlockID: bp.UserBlockID,
		Completed:   bp.Completed,
		Concepts:    concepts,
	})
}
