package refiner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quill/prompt"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

// chatServer replies to /chat/completions with the given content and
// records the last request.
func chatServer(t *testing.T, content string) (*httptest.Server, *chatRequest) {
	t.Helper()
	last := &chatRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(last); err != nil {
			t.Errorf("decoding chat request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, last
}

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *prompt.Library) {
	t.Helper()
	lib := prompt.Load(t.TempDir())
	return NewWithBaseURL("sk-test", srv.URL, lib), lib
}

func TestProcessPlainPrompt(t *testing.T) {
	srv, last := chatServer(t, "Cleaned up text.")
	c, lib := newTestClient(t, srv)

	got, err := c.Process(context.Background(), "raw transcript", "basic_cleanup")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got != "Cleaned up text." {
		t.Errorf("Process = %q", got)
	}

	if len(last.Messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(last.Messages))
	}
	p, _ := lib.Get("basic_cleanup")
	if last.Messages[0].Content != p.Prompt {
		t.Errorf("system message does not carry the prompt text")
	}
	if last.Messages[1].Content != "raw transcript" {
		t.Errorf("user message = %q", last.Messages[1].Content)
	}
	if last.ResponseFormat != nil {
		t.Error("plain prompt must not request a response format")
	}
}

func TestProcessRequiresJSON(t *testing.T) {
	srv, last := chatServer(t, `{"processed_text": "structured result"}`)
	c, lib := newTestClient(t, srv)

	id, err := lib.Add("json_mode", "JSON Mode", "Refine this.", true)
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.Process(context.Background(), "raw", id)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got != "structured result" {
		t.Errorf("Process = %q", got)
	}
	if last.ResponseFormat == nil || last.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v, want json_object", last.ResponseFormat)
	}
	if !strings.Contains(last.Messages[0].Content, "processed_text") {
		t.Error("system prompt missing the JSON format instruction")
	}
}

func TestProcessMalformedJSONFallsBack(t *testing.T) {
	srv, _ := chatServer(t, "not json at all")
	c, lib := newTestClient(t, srv)

	id, err := lib.Add("json_mode", "JSON Mode", "Refine this.", true)
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.Process(context.Background(), "raw", id)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got != "not json at all" {
		t.Errorf("Process = %q, want raw content fallback", got)
	}
}

func TestProcessUnknownPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent for an unknown prompt")
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv)

	_, err := c.Process(context.Background(), "text", "nonexistent_mode")
	if !errors.Is(err, prompt.ErrNotFound) {
		t.Errorf("error = %v, want prompt.ErrNotFound", err)
	}
}

func TestProcessEmptyText(t *testing.T) {
	srv, _ := chatServer(t, "x")
	c, _ := newTestClient(t, srv)

	if _, err := c.Process(context.Background(), "   ", "basic_cleanup"); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestProcessAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv)

	_, err := c.Process(context.Background(), "text", "basic_cleanup")
	if !errors.Is(err, ErrAuth) {
		t.Errorf("error = %v, want ErrAuth", err)
	}
}

func TestProcessAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "server error", "type": "server_error"}}`)
	}))
	defer srv.Close()
	c, _ := newTestClient(t, srv)

	_, err := c.Process(context.Background(), "text", "basic_cleanup")
	if !errors.Is(err, ErrAPI) {
		t.Errorf("error = %v, want ErrAPI", err)
	}
}

func TestProcessNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	lib := prompt.Load(t.TempDir())
	c := NewWithBaseURL("sk-test", url, lib)

	_, err := c.Process(context.Background(), "text", "basic_cleanup")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestSuggestTitle(t *testing.T) {
	srv, last := chatServer(t, `{"filename": "Weekly Standup Notes"}`)
	c, _ := newTestClient(t, srv)

	got, err := c.SuggestTitle(context.Background(), "we discussed the weekly standup")
	if err != nil {
		t.Fatalf("SuggestTitle: %v", err)
	}
	want := time.Now().Format("2006-01-02") + "-weekly-standup-notes"
	if got != want {
		t.Errorf("SuggestTitle = %q, want %q", got, want)
	}
	if last.ResponseFormat == nil || last.ResponseFormat.Type != "json_object" {
		t.Error("filename request must use json_object response format")
	}
}

func TestSuggestTitleMalformedJSON(t *testing.T) {
	srv, _ := chatServer(t, "Shopping List!")
	c, _ := newTestClient(t, srv)

	got, err := c.SuggestTitle(context.Background(), "eggs and milk")
	if err != nil {
		t.Fatalf("SuggestTitle: %v", err)
	}
	want := time.Now().Format("2006-01-02") + "-shopping-list"
	if got != want {
		t.Errorf("SuggestTitle = %q, want sanitized fallback %q", got, want)
	}
}

func TestSuggestTitleTruncatesInput(t *testing.T) {
	srv, last := chatServer(t, `{"filename": "long"}`)
	c, _ := newTestClient(t, srv)

	if _, err := c.SuggestTitle(context.Background(), strings.Repeat("a", 5000)); err != nil {
		t.Fatalf("SuggestTitle: %v", err)
	}
	if len(last.Messages[1].Content) != 1000 {
		t.Errorf("user message length = %d, want 1000", len(last.Messages[1].Content))
	}
}

func TestSanitizeFilename(t *testing.T) {
	for _, tt := range []struct{ in, want string }{
		{"My Note", "my-note"},
		{"notes: q3/q4 (draft)", "notes-q3q4-draft"},
		{"already-clean_name", "already-clean_name"},
		{"###", ""},
	} {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
