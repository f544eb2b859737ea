package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/remaimber-it/mastery/internal/llm"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string        `json:"model"`
			Messages []llm.Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) == 0 {
			t.Errorf("unexpected request: %+v", req)
		}

		if status != http.StatusOK {
			http.Error(w, "overloaded", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "<think>hmm</think>\n{\"ok\": true}")
	c := llm.NewClient(srv.URL+"/", "test-model", 5*time.Second)

	got, err := c.Complete(context.Background(), []llm.Message{llm.User("hi")})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"ok": true}` {
		t.Errorf("unexpected content %q", got)
	}
}

func TestComplete_StatusError(t *testing.T) {
	srv := chatServer(t, http.StatusServiceUnavailable, "")
	c := llm.NewClient(srv.URL, "test-model", 5*time.Second)

	_, err := c.Complete(context.Background(), []llm.Message{llm.User("hi")})

	var se *llm.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || !se.Temporary() {
		t.Errorf("expected temporary 503, got %+v", se)
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "<think>only thoughts</think>")
	c := llm.NewClient(srv.URL, "test-model", 5*time.Second)

	_, err := c.Complete(context.Background(), []llm.Message{llm.User("hi")})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestStatusError_Temporary(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		if got := (&llm.StatusError{StatusCode: tt.code}).Temporary(); got != tt.want {
			t.Errorf("Temporary() for %d = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"object", `Sure! {"a": 1} done`, `{"a": 1}`},
		{"nested", `x {"a": {"b": [1, 2]}} y`, `{"a": {"b": [1, 2]}}`},
		{"array", "```json\n[{\"q\": 1}]\n```", `[{"q": 1}]`},
		{"brace in string", `{"code": "func() { }"}`, `{"code": "func() { }"}`},
		{"escaped quote", `{"s": "say \"}\""}`, `{"s": "say \"}\""}`},
		{"none", "no json here", ""},
		{"unterminated", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := llm.ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripThinking(t *testing.T) {
	if got := llm.StripThinking("<think>a</think>b<think>c</think>d"); got != "bd" {
		t.Errorf("unexpected %q", got)
	}
	if got := llm.StripThinking("answer<think>unterminated"); got != "answer" {
		t.Errorf("unexpected %q", got)
	}
}
