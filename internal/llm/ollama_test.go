package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "mistral:7b-instruct-q4_K_M" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Prompt != "What are conditions like?" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		if req.Stream {
			t.Error("stream = true, want false for Generate")
		}
		if req.Options == nil || req.Options.Temperature != 0.5 {
			t.Errorf("options = %+v, want temperature 0.5", req.Options)
		}
		json.NewEncoder(w).Encode(generateChunk{Response: "Cold and snowy.", Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "mistral:7b-instruct-q4_K_M", &OllamaOptions{Temperature: 0.5})
	got, err := c.Generate(context.Background(), "What are conditions like?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Cold and snowy." {
		t.Errorf("response = %q", got)
	}
}

func TestOllamaGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("stream = false, want true for GenerateStream")
		}
		enc := json.NewEncoder(w)
		enc.Encode(generateChunk{Response: "Heavy "})
		enc.Encode(generateChunk{Response: "snow "})
		enc.Encode(generateChunk{Response: "expected."})
		enc.Encode(generateChunk{Done: true})
	}))
	defer srv.Close()

	var tokens []string
	c := NewOllamaClient(srv.URL, "mistral", nil)
	got, err := c.GenerateStream(context.Background(), "forecast?", func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if got != "Heavy snow expected." {
		t.Errorf("accumulated = %q", got)
	}
	if len(tokens) != 3 {
		t.Errorf("callback invoked %d times, want 3", len(tokens))
	}
}

func TestOllamaGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "nope", nil)
	_, err := c.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %v, want to mention status 404", err)
	}
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "mistral", nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOllamaPingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed before the call

	c := NewOllamaClient(srv.URL, "mistral", nil)
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected error pinging closed server")
	}
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"mistral:7b"},{"name":"llama3:8b"}]}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "mistral", nil)
	names, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(names) != 2 || names[0] != "mistral:7b" || names[1] != "llama3:8b" {
		t.Errorf("names = %v", names)
	}
}

func TestOllamaDefaultBaseURL(t *testing.T) {
	c := NewOllamaClient("", "mistral", nil)
	if c.baseURL != "http://localhost:11434" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
}
