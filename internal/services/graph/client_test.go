package graph_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"postflow/internal/services"
	"postflow/internal/services/graph"
)

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	method string
	path   string
	form   map[string]string
}

func (r *recorder) add(req *http.Request) {
	_ = req.ParseForm()
	form := make(map[string]string)
	for key := range req.Form {
		form[key] = req.Form.Get(key)
	}
	r.mu.Lock()
	r.requests = append(r.requests, recordedRequest{method: req.Method, path: req.URL.Path, form: form})
	r.mu.Unlock()
}

func newClient(url string) *graph.Client {
	return graph.NewClient(graph.Config{BaseURL: url, AccessToken: "token", IGUserID: "17841"})
}

func TestPublishTwoStep(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch r.URL.Path {
		case "/17841/media":
			_, _ = w.Write([]byte(`{"id":"container-1"}`))
		case "/17841/media_publish":
			_, _ = w.Write([]byte(`{"id":"media-9"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	id, err := newClient(server.URL).Publish(context.Background(), "https://cdn.example/post_1.png", "Olá #NutriSigno")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "media-9" {
		t.Fatalf("media id = %q", id)
	}
	if len(rec.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(rec.requests))
	}
	create, publish := rec.requests[0], rec.requests[1]
	if create.method != http.MethodPost || create.form["image_url"] != "https://cdn.example/post_1.png" ||
		create.form["caption"] != "Olá #NutriSigno" || create.form["access_token"] != "token" {
		t.Fatalf("unexpected create request: %+v", create)
	}
	if publish.form["creation_id"] != "container-1" {
		t.Fatalf("unexpected publish request: %+v", publish)
	}
}

func TestPublishErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"message":"Invalid image","type":"OAuthException","code":9004}}`, true},
		{"forbidden", http.StatusForbidden, `{"error":{"message":"nope"}}`, true},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, false},
		{"server error", http.StatusBadGateway, `bad gateway`, false},
		{"error envelope on 200", http.StatusOK, `{"error":{"message":"temporary"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(server.URL).Publish(context.Background(), "https://cdn.example/a.png", "c")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := services.IsPermanent(err); got != tt.permanent {
				t.Fatalf("IsPermanent = %v, want %v (%v)", got, tt.permanent, err)
			}
			var apiErr *graph.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
				t.Fatalf("expected APIError with status %d, got %v", tt.status, err)
			}
		})
	}
}

func TestPublishNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newClient(url).CreateMedia(context.Background(), "https://cdn.example/a.png", "c")
	if err == nil || services.IsPermanent(err) || !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestMissingCredentials(t *testing.T) {
	client := graph.NewClient(graph.Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.CreateMedia(context.Background(), "https://cdn.example/a.png", "c")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := client.VerifyToken(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestVerifyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/17841" || r.URL.Query().Get("access_token") != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad token","code":190}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"17841","username":"nutrisigno"}`))
	}))
	defer server.Close()

	if err := newClient(server.URL).VerifyToken(context.Background()); err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	bad := graph.NewClient(graph.Config{BaseURL: server.URL, AccessToken: "other", IGUserID: "17841"})
	err := bad.VerifyToken(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad token") {
		t.Fatalf("expected token error, got %v", err)
	}
}
