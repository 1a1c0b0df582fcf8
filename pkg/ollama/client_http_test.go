package ollama_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/skilltrials/internal/config"
	"github.com/garnizeh/skilltrials/pkg/ollama"
)

func newClient(t *testing.T, srv *httptest.Server, cfg config.OllamaConfig) *ollama.Client {
	t.Helper()
	cfg.BaseURL = srv.URL
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	client, err := ollama.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_ListModelsAndHealth_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/api/tags" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3","size":42}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newClient(t, srv, config.OllamaConfig{})

	ctx := context.Background()
	models, err := client.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 1 || models[0].Name != "llama3" || models[0].Size != 42 {
		t.Fatalf("unexpected models: %#v", models)
	}

	if err := client.Health(ctx); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}

func TestClient_Health_NoModels_Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/api/tags" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newClient(t, srv, config.OllamaConfig{})
	if err := client.Health(context.Background()); err == nil {
		t.Fatalf("expected Health to fail when no models returned")
	}
}

func TestClient_Generate_Streaming_Concatenates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/generate" {
			w.Header().Set("Content-Type", "application/x-ndjson")
			writeSequence(w, []map[string]any{
				{"model": "m", "response": `{"questions":`, "done": false},
				{"model": "m", "response": `[]}`, "done": true},
			}, 5*time.Millisecond)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newClient(t, srv, config.OllamaConfig{})
	res, err := client.Generate(context.Background(), "m", "prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != `{"questions":[]}` {
		t.Fatalf("unexpected Generate.Text: %q", res.Text)
	}
	if res.Meta["done"] != true {
		t.Fatalf("expected done in meta, got %#v", res.Meta)
	}
}

func TestClient_Generate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "server error", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/x-ndjson")
				_, _ = w.Write([]byte(`{ this is : not json `))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := newClient(t, srv, config.OllamaConfig{Retries: 0, CircuitFailureThreshold: 10})
			_, err := client.Generate(context.Background(), "m", "prompt")
			if err == nil {
				t.Fatalf("expected Generate to fail")
			}
			if !strings.Contains(err.Error(), "generate failed") {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := ollama.RenderTemplate("Write {{.Count}} questions for {{.Title}}", map[string]any{"Count": 3, "Title": "Go dev"})
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}
	if out != "Write 3 questions for Go dev" {
		t.Fatalf("unexpected render: %q", out)
	}

	if _, err := ollama.RenderTemplate("{{.Missing}}", map[string]any{}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := ollama.RenderTemplate("{{.Broken", nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
