package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/remaimber-it/mastery/internal/api"
	"github.com/remaimber-it/mastery/internal/domain/quiz"
	"github.com/remaimber-it/mastery/internal/generator"
	"github.com/remaimber-it/mastery/internal/grader"
	"github.com/remaimber-it/mastery/internal/infrastructure/logger"
	"github.com/remaimber-it/mastery/internal/mastery"
	"github.com/remaimber-it/mastery/internal/scheduler"
	"github.com/remaimber-it/mastery/internal/search"
	"github.com/remaimber-it/mastery/internal/service"
	"github.com/remaimber-it/mastery/internal/store"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, req generator.Request) ([]generator.Question, error) {
	var out []generator.Question
	for _, t := range quiz.QuestionTypes {
		for i := 0; i < req.Mix.Count(t); i++ {
			q := generator.Question{QuestionType: t, QuestionText: req.Concept + "?", CorrectAnswerText: "yes"}
			if t.HasOptions() {
				q.Options = []generator.Option{{OptionText: "yes", IsCorrect: true}, {OptionText: "no"}}
			}
			out = append(out, q)
		}
	}
	return out, nil
}

type stubGrader struct{}

func (stubGrader) IsCorrect(_ context.Context, q grader.Question, answer string) (bool, error) {
	return answer == q.Expected, nil
}

type testServer struct {
	handler   http.Handler
	store     *store.SQLiteStore
	lifecycle *service.QuizLifecycle
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	searcher, err := search.NewSQLite(s.DB())
	if err != nil {
		t.Fatal(err)
	}

	log := logger.NewNop()
	lc := service.NewQuizLifecycle(service.Deps{
		Store:     s,
		Evaluator: mastery.NewEvaluator(mastery.DefaultCriteria()),
		Scheduler: scheduler.New(scheduler.DefaultConfig()),
		Searcher:  searcher,
		Generator: stubGenerator{},
		Grader:    stubGrader{},
		Logger:    log,
	}, service.DefaultOptions())
	content := service.NewContentService(s, searcher, log)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.NewHandler(lc, content, log))
	return &testServer{
		handler:   api.Logging(log)(api.CORS(mux)),
		store:     s,
		lifecycle: lc,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func (ts *testServer) generate(t *testing.T, quizID string) {
	t.Helper()
	task, err := ts.store.GetGenerationByQuiz(context.Background(), quizID)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.lifecycle.RunGeneration(context.Background(), task); err != nil {
		t.Fatalf("run generation: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodOptions, "/blocks/b/attempts", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}

func TestCreateConcepts_Validation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/blocks/b1/concepts", api.CreateConceptsRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty list, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/blocks/b1/concepts", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestStartBlock_UnknownBlock(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/blocks/nope/attempts", api.StartBlockRequest{UserID: "u1"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/blocks/nope/attempts", api.StartBlockRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user id, got %d", rec.Code)
	}
}

func TestQuizFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/blocks/b1/concepts", api.CreateConceptsRequest{
		Concepts: []api.ConceptRequest{{Name: "slices"}, {Name: "maps", DifficultyIndex: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create concepts: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/blocks/b1/chunks", api.IndexChunksRequest{Texts: []string{"Slices are views over arrays."}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("index chunks: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/blocks/b1/attempts", api.StartBlockRequest{UserID: "u1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start block: %d %s", rec.Code, rec.Body.String())
	}
	started := decode[api.StartBlockResponse](t, rec)
	if started.Version != 1 || len(started.Progress) != 2 {
		t.Fatalf("unexpected start response: %+v", started)
	}

	// not generated yet
	rec = ts.do(t, http.MethodGet, "/user-blocks/"+started.UserBlockID+"/next-quiz", nil)
	pending := decode[api.AdaptiveQuizResponse](t, rec)
	if pending.Status != "preparing" || len(pending.Questions) != 0 {
		t.Fatalf("expected preparing quiz without questions, got %+v", pending)
	}
	rec = ts.do(t, http.MethodPost, "/adaptive-quizzes/"+started.QuizID+"/finish", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 finishing unready quiz, got %d", rec.Code)
	}

	ts.generate(t, started.QuizID)

	rec = ts.do(t, http.MethodGet, "/adaptive-quizzes/"+started.QuizID, nil)
	ready := decode[api.AdaptiveQuizResponse](t, rec)
	if ready.Status != "ready" || len(ready.Questions) == 0 {
		t.Fatalf("expected ready quiz, got %+v", ready)
	}
	if ready.NextQuestionID != ready.Questions[0].ID {
		t.Error("expected next question to be the first one")
	}
	for _, q := range ready.Questions {
		if q.CorrectAnswerText != "" {
			t.Fatal("solutions must stay hidden while the quiz is open")
		}
		for _, o := range q.Options {
			if o.IsCorrect != nil {
				t.Fatal("option flags must stay hidden while the quiz is open")
			}
		}
	}

	for _, q := range ready.Questions {
		rec = ts.do(t, http.MethodPost, "/adaptive-quizzes/"+started.QuizID+"/answers",
			api.SubmitAnswerRequest{QuestionID: q.ID, Answer: "yes"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit answer: %d %s", rec.Code, rec.Body.String())
		}
		if a := decode[api.AnswerResponse](t, rec); !a.IsCorrect {
			t.Errorf("expected correct answer for %s", q.QuestionType)
		}
	}

	rec = ts.do(t, http.MethodPost, "/adaptive-quizzes/"+started.QuizID+"/answers",
		api.SubmitAnswerRequest{QuestionID: ready.Questions[0].ID, Answer: "no"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a second answer to the same question, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/adaptive-quizzes/"+started.QuizID+"/answers",
		api.SubmitAnswerRequest{QuestionID: "unknown", Answer: "yes"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for foreign question, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/adaptive-quizzes/"+started.QuizID+"/finish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finish: %d %s", rec.Code, rec.Body.String())
	}
	fin := decode[api.FinishQuizResponse](t, rec)
	if fin.BlockMastered || fin.NextVersion != 2 || len(fin.Updated) != 2 {
		t.Errorf("unexpected finish response: %+v", fin)
	}

	rec = ts.do(t, http.MethodPost, "/adaptive-quizzes/"+started.QuizID+"/finish", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on second finish, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/adaptive-quizzes/"+started.QuizID, nil)
	done := decode[api.AdaptiveQuizResponse](t, rec)
	if done.Status != "completed" || done.Questions[0].CorrectAnswerText == "" {
		t.Errorf("expected completed quiz with solutions, got %+v", done.Questions[0])
	}

	rec = ts.do(t, http.MethodGet, "/user-blocks/"+started.UserBlockID+"/concept-progress", nil)
	progress := decode[api.ConceptProgressResponse](t, rec)
	if len(progress.Concepts) != 2 || progress.Concepts[0].Name != "slices" {
		t.Fatalf("unexpected progress: %+v", progress)
	}
	for _, c := range progress.Concepts {
		if c.Asked != 3 || c.Score != 0.8 {
			t.Errorf("unexpected concept progress: %+v", c)
		}
		// three questions on a balanced mix are one each of A1, A2 and B1
		if c.ByType["A1"].Asked != 1 || c.ByType["B1"].Correct != 1 || c.ByType["B2"].Asked != 0 {
			t.Errorf("unexpected per type counts: %+v", c.ByType)
		}
	}

	rec = ts.do(t, http.MethodGet, "/user-blocks/"+started.UserBlockID+"/next-quiz", nil)
	next := decode[api.AdaptiveQuizResponse](t, rec)
	if next.ID != fin.NextQuizID || next.Version != 2 || next.ReadyForAnswering {
		t.Errorf("expected unready version 2, got %+v", next)
	}
}

func TestPlacementQuizFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/blocks/b1/placement-quiz", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a block without concepts, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/blocks/b1/concepts", api.CreateConceptsRequest{
		Concepts: []api.ConceptRequest{{Name: "maps", DifficultyIndex: 2}, {Name: "slices"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create concepts: %d %s", rec.Code, rec.Body.String())
	}
	concepts := decode[[]api.ConceptResponse](t, rec)

	rec = ts.do(t, http.MethodPost, "/blocks/b1/placement-quiz", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create placement quiz: %d %s", rec.Code, rec.Body.String())
	}
	placement := decode[api.PlacementQuizResponse](t, rec)
	if len(placement.Questions) != 8 {
		t.Fatalf("expected one question per type per concept, got %d", len(placement.Questions))
	}
	// easiest concept first
	if placement.Questions[0].ConceptID != concepts[1].ID || placement.Questions[7].ConceptID != concepts[0].ID {
		t.Errorf("expected slices before maps, got %+v", placement.Questions)
	}

	rec = ts.do(t, http.MethodPost, "/blocks/b1/placement-quiz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for an existing placement quiz, got %d", rec.Code)
	}
	if again := decode[api.PlacementQuizResponse](t, rec); again.ID != placement.ID {
		t.Errorf("expected the same placement quiz, got %s", again.ID)
	}

	rec = ts.do(t, http.MethodPost, "/blocks/b1/attempts", api.StartBlockRequest{UserID: "u1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start block: %d %s", rec.Code, rec.Body.String())
	}
	started := decode[api.StartBlockResponse](t, rec)

	rec = ts.do(t, http.MethodGet, "/adaptive-quizzes/"+started.QuizID, nil)
	first := decode[api.AdaptiveQuizResponse](t, rec)
	if first.Status != "ready" || len(first.Questions) != 8 || first.Version != 1 {
		t.Errorf("expected placement questions ready at once, got %+v", first)
	}

	rec = ts.do(t, http.MethodPost, "/blocks/b1/attempts", api.StartBlockRequest{UserID: "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a resumed attempt, got %d", rec.Code)
	}
	resumed := decode[api.StartBlockResponse](t, rec)
	if !resumed.Resumed || resumed.UserBlockID != started.UserBlockID || resumed.QuizID != started.QuizID {
		t.Errorf("expected the existing attempt, got %+v", resumed)
	}
}

func TestGetAdaptiveQuiz_NotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/adaptive-quizzes/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if body := decode[api.ErrorResponse](t, rec); body.Error != "quiz not found" {
		t.Errorf("unexpected error body: %+v", body)
	}
}
