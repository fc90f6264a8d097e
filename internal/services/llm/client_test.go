package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"postflow/internal/services"
)

func completionServer(t *testing.T, handler func(call int, w http.ResponseWriter, r *http.Request)) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		handler(calls, w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func writeCompletion(w http.ResponseWriter, choice map[string]any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}})
}

func fastClient(baseURL string, opts ...Option) *Client {
	opts = append([]Option{
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	}, opts...)
	return NewClient(Config{APIKey: "test", BaseURL: baseURL, Model: "demo-model"}, opts...)
}

func TestCompleteJSONSendsPromptsAndHeaders(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization header = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "postflow" {
			t.Errorf("title header = %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "demo-model" || len(req.Messages) != 2 || req.Messages[1].Content != "escreva" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("response format = %v", req.ResponseFormat)
		}
		writeCompletion(w, map[string]any{"message": map[string]any{"content": `{"display_text":"oi"}`}})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Title: "postflow"})
	content, err := client.CompleteJSON(context.Background(), "system", "escreva")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"display_text":"oi"}` {
		t.Fatalf("content = %q", content)
	}
}

func TestCompleteJSONAcceptsDeltaAndLegacyText(t *testing.T) {
	for name, choice := range map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": `{"ok":1}`}},
		"legacy": {"text": `{"ok":1}`, "finish_reason": "stop"},
	} {
		t.Run(name, func(t *testing.T) {
			server, _ := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
				writeCompletion(w, choice)
			})
			content, err := fastClient(server.URL).CompleteJSON(context.Background(), "s", "u")
			if err != nil || content != `{"ok":1}` {
				t.Fatalf("content = %q, err = %v", content, err)
			}
		})
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	server, calls := completionServer(t, func(call int, w http.ResponseWriter, _ *http.Request) {
		if call == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeCompletion(w, map[string]any{"message": map[string]any{"content": `{"ok":true}`}})
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if *calls != 2 {
		t.Fatalf("expected 2 calls, got %d", *calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	server, calls := completionServer(t, func(call int, w http.ResponseWriter, _ *http.Request) {
		content := ""
		if call >= 3 {
			content = `{"ok":true}`
		}
		writeCompletion(w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}})
	})
	if _, err := fastClient(server.URL, WithRetryMaxAttempts(5)).CompleteJSON(context.Background(), "s", "u"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 calls, got %d", *calls)
	}
}

func TestCompleteJSONClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
		calls     int
	}{
		{"bad request", http.StatusBadRequest, true, 1},
		{"unauthorized", http.StatusUnauthorized, false, 1},
		{"server error", http.StatusBadGateway, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			_, err := fastClient(server.URL, WithRetryMaxAttempts(3)).CompleteJSON(context.Background(), "s", "u")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := services.IsPermanent(err); got != tt.permanent {
				t.Fatalf("IsPermanent = %v, want %v (err %v)", got, tt.permanent, err)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Fatalf("expected StatusError %d, got %v", tt.status, err)
			}
			if *calls != tt.calls {
				t.Fatalf("calls = %d, want %d", *calls, tt.calls)
			}
		})
	}
}

func TestCompleteJSONEmptyContentHasSnippet(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeCompletion(w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": ""}})
	})
	_, err := fastClient(server.URL, WithRetryMaxAttempts(2)).CompleteJSON(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
	if services.IsPermanent(err) {
		t.Fatalf("empty content should be transient: %v", err)
	}
}

func TestCompleteJSONRequiresKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server, _ := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		writeCompletion(w, map[string]any{"message": map[string]any{"content": "```json\n{\"ok\":true}\n```"}})
	})
	if err := fastClient(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	failing, _ := completionServer(t, func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if err := fastClient(failing.URL).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Caption string `json:"caption"`
	}
	inputs := []string{
		`{"caption":"ok"}`,
		"```json\n{\"caption\":\"ok\"}\n```",
		`Here you go: {"caption":"ok"} hope it helps`,
	}
	for _, input := range inputs {
		out.Caption = ""
		if err := DecodeJSON(input, &out); err != nil || out.Caption != "ok" {
			t.Fatalf("DecodeJSON(%q) = %q, %v", input, out.Caption, err)
		}
	}
	if err := DecodeJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if err := DecodeJSON("no json here", &out); err == nil {
		t.Fatal("expected error for prose")
	}
}
