package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cvhub/internal/config"
)

func testConfig(endpoint string) config.TranslateConfig {
	return config.TranslateConfig{
		Endpoint:     endpoint,
		SourceLang:   "en",
		FieldTimeout: 2 * time.Second,
		Concurrency:  4,
	}
}

func TestTranslate_WireContract(t *testing.T) {
	var got translateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "Ingénieur expérimenté"})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	result, err := client.Translate(context.Background(), "Experienced engineer", "fr")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if result != "Ingénieur expérimenté" {
		t.Fatalf("result = %q", result)
	}

	want := translateRequest{Q: "Experienced engineer", Source: "en", Target: "fr", Format: "text"}
	if got != want {
		t.Fatalf("request = %+v, want %+v", got, want)
	}
}

func TestTranslate_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.Translate(context.Background(), "hello", "fr"); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestTranslate_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if _, err := client.Translate(context.Background(), "hello", "fr"); err == nil {
		t.Fatal("expected error on malformed body")
	}
}

func TestWithSource(t *testing.T) {
	client := NewClient(testConfig("http://example.invalid"))

	derived := client.WithSource("es")
	if derived.SourceLang() != "es" {
		t.Fatalf("derived source = %s", derived.SourceLang())
	}
	if client.SourceLang() != "en" {
		t.Fatalf("original client mutated, source = %s", client.SourceLang())
	}
	if client.WithSource("") != client || client.WithSource("en") != client {
		t.Fatal("no-op overrides should return the same client")
	}
}
