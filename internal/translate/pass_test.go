package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"cvhub/internal/cv"
)

func sampleDocument() cv.Document {
	return cv.Document{
		FullName:        "Jane Doe",
		Email:           "jane@example.com",
		Phone:           "123-456-7890",
		Link:            "https://example.com/jane",
		Photo:           "cv-photos/abc123/photo.png",
		Summary:         "Experienced engineer",
		TechnicalSkills: "Go, PostgreSQL",
		Experience: []cv.ExperienceEntry{
			{Title: "Engineer", Company: "Acme", StartDate: "2020-01", EndDate: "2023-06", Description: "Built things", Tools: "Go"},
			{Title: "Intern", Company: "Widgets Inc", Description: "Helped out"},
		},
		Education: []cv.EducationEntry{
			{Degree: "BSc", Institution: "State University", Achievements: "Honors"},
		},
		Languages: []cv.LanguageEntry{
			{Language: "English", Level: "Native"},
		},
		Certifications: []cv.CertificationEntry{
			{Name: "AWS", Year: 2022},
		},
		Projects: []cv.ProjectEntry{
			{Name: "cvhub", Description: "Resume hosting", Link: "https://github.com/x"},
		},
		References: []cv.ReferenceEntry{
			{Name: "John", Position: "Manager", Company: "Acme", Contact: "john@acme.test"},
		},
	}
}

func gatewayStub(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(testConfig(server.URL))
}

// 翻译成功时，白名单字段被替换，其余字段逐字节不变。
func TestDocument_AllowListOnly(t *testing.T) {
	client := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "[fr] " + req.Q})
	})

	input := sampleDocument()
	out, err := Document(context.Background(), client, input, "fr")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}

	if out.Summary != "[fr] Experienced engineer" {
		t.Fatalf("summary = %q", out.Summary)
	}
	if out.Experience[0].Description != "[fr] Built things" {
		t.Fatalf("experience description = %q", out.Experience[0].Description)
	}
	if out.References[0].Position != "[fr] Manager" {
		t.Fatalf("reference position = %q", out.References[0].Position)
	}

	// 白名单外字段必须原样保留。
	if out.Experience[0].StartDate != "2020-01" || out.Experience[0].EndDate != "2023-06" {
		t.Fatal("dates must pass through untouched")
	}
	if out.Experience[0].Tools != "Go" {
		t.Fatalf("tools = %q", out.Experience[0].Tools)
	}
	if out.Photo != input.Photo || out.Link != input.Link || out.Email != input.Email {
		t.Fatal("photo/link/email must pass through untouched")
	}
	if !reflect.DeepEqual(out.Languages, input.Languages) {
		t.Fatalf("languages section must be copied verbatim: %+v", out.Languages)
	}
	if !reflect.DeepEqual(out.Certifications, input.Certifications) {
		t.Fatalf("certifications section must be copied verbatim: %+v", out.Certifications)
	}
	if len(out.Experience) != len(input.Experience) {
		t.Fatal("entry count changed")
	}
}

// 网关全部失败时，输出与输入逐字段相等，并返回 ErrUnavailable。
func TestDocument_TotalFailureFallsBackToInput(t *testing.T) {
	client := gatewayStub(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})

	input := sampleDocument()
	out, err := Document(context.Background(), client, input, "fr")
	if err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !reflect.DeepEqual(out, input) {
		t.Fatalf("fallback output differs from input:\n got %+v\nwant %+v", out, input)
	}
}

// 单个字段失败只影响该字段，兄弟字段照常翻译。
func TestDocument_PartialFailureIsIsolated(t *testing.T) {
	client := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Q == "Built things" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "[fr] " + req.Q})
	})

	out, err := Document(context.Background(), client, sampleDocument(), "fr")
	if err != nil {
		t.Fatalf("pass must not fail on a single field: %v", err)
	}
	if out.Experience[0].Description != "Built things" {
		t.Fatalf("failed field must keep original, got %q", out.Experience[0].Description)
	}
	if out.Experience[0].Title != "[fr] Engineer" {
		t.Fatalf("sibling field should still translate, got %q", out.Experience[0].Title)
	}
	if out.Summary != "[fr] Experienced engineer" {
		t.Fatalf("summary = %q", out.Summary)
	}
}

// 原始文档不会被修改，切片也不与输出共享。
func TestDocument_InputNotMutated(t *testing.T) {
	client := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "[fr] " + req.Q})
	})

	input := sampleDocument()
	snapshot := sampleDocument()

	if _, err := Document(context.Background(), client, input, "fr"); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if !reflect.DeepEqual(input, snapshot) {
		t.Fatal("input document was mutated by the pass")
	}
}

// 空字段不会触发网关调用。
func TestDocument_EmptyFieldsSkipped(t *testing.T) {
	var calls atomic.Int64
	client := gatewayStub(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req translateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "[fr] " + req.Q})
	})

	doc := cv.Document{FullName: "Jane Doe", Email: "jane@example.com", Summary: "Hello"}
	out, err := Document(context.Background(), client, doc, "fr")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 gateway call, got %d", calls.Load())
	}
	if out.Summary != "[fr] Hello" {
		t.Fatalf("summary = %q", out.Summary)
	}
}

// 没有任何可翻译字段时不算"翻译不可用"。
func TestDocument_NothingToTranslate(t *testing.T) {
	client := NewClient(testConfig("http://example.invalid"))

	doc := cv.Document{FullName: "Jane Doe", Email: "jane@example.com"}
	out, err := Document(context.Background(), client, doc, "fr")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !reflect.DeepEqual(out, doc) {
		t.Fatal("output should equal input")
	}
}
