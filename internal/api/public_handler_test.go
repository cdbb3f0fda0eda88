package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvhub/internal/config"
	"cvhub/internal/cv"
	"cvhub/internal/database"
	"cvhub/internal/translate"
	"cvhub/internal/visibility"
)

func newPublicTestEnv(t *testing.T, translator *translate.Client, identity string) (*gin.Engine, *database.CVStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.CVRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := database.NewCVStore(db)
	gate := visibility.NewGate(store)
	handler := NewPublicHandler(gate, translator, nil, nil, 0, 0, nil)

	router := gin.New()
	router.GET("/cv/:slug", func(c *gin.Context) {
		if identity != "" {
			c.Set("identity", identity)
		}
	}, handler.GetCV)
	return router, store
}

func seedPublicRecord(t *testing.T, store *database.CVStore, slug string, public bool, views uint) *database.CVRecord {
	t.Helper()
	content, err := json.Marshal(cv.Document{
		FullName: "Jane Doe",
		Email:    "jane@example.com",
		Summary:  "Backend engineer with ten years of experience.",
	})
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	record := &database.CVRecord{
		OwnerEmail:    "jane@example.com",
		Slug:          slug,
		ConsentPublic: public,
		Views:         views,
		ThemeColor:    "#0f766e",
		Content:       content,
	}
	if err := store.Save(context.Background(), record); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return record
}

func doGet(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPublicCVUnknownSlug(t *testing.T) {
	router, _ := newPublicTestEnv(t, nil, "")

	rec := doGet(t, router, "/cv/does-not-exist")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPublicCVPrivateDenied(t *testing.T) {
	router, store := newPublicTestEnv(t, nil, "")
	seedPublicRecord(t, store, "private-slug", false, 0)

	rec := doGet(t, router, "/cv/private-slug")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "This CV is private" {
		t.Fatalf("error = %q", body["error"])
	}

	// 拒绝访问不应计入浏览。
	loaded, err := store.FindBySlug(context.Background(), "private-slug")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Views != 0 {
		t.Fatalf("views = %d after denied access", loaded.Views)
	}
}

func TestPublicCVAnonymousViewCounts(t *testing.T) {
	router, store := newPublicTestEnv(t, nil, "")
	seedPublicRecord(t, store, "public-slug", true, 4)

	rec := doGet(t, router, "/cv/public-slug")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	var body publicCVResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Views != 5 {
		t.Fatalf("views = %d, want 5", body.Views)
	}
	if body.CV == nil || body.CV.FullName != "Jane Doe" {
		t.Fatalf("cv payload missing: %+v", body.CV)
	}

	loaded, err := store.FindBySlug(context.Background(), "public-slug")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Views != 5 {
		t.Fatalf("persisted views = %d, want 5", loaded.Views)
	}
}

func TestPublicCVOwnerDoesNotCount(t *testing.T) {
	router, store := newPublicTestEnv(t, nil, "jane@example.com")
	seedPublicRecord(t, store, "owner-slug", false, 7)

	// 私有记录对所有者可见，且不计浏览。
	rec := doGet(t, router, "/cv/owner-slug")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	loaded, err := store.FindBySlug(context.Background(), "owner-slug")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Views != 7 {
		t.Fatalf("views = %d, want unchanged 7", loaded.Views)
	}
}

func newTestTranslator(endpoint string) *translate.Client {
	return translate.NewClient(config.TranslateConfig{
		Endpoint:     endpoint,
		SourceLang:   "en",
		FieldTimeout: 2 * time.Second,
		Concurrency:  2,
	})
}

func TestPublicCVTranslated(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "[fr] traduit"})
	}))
	defer gateway.Close()

	router, store := newPublicTestEnv(t, newTestTranslator(gateway.URL), "")
	seedPublicRecord(t, store, "lang-slug", true, 0)

	rec := doGet(t, router, "/cv/lang-slug?lang=fr")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body publicCVResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.CV.Summary != "[fr] traduit" {
		t.Fatalf("summary = %q, want translated text", body.CV.Summary)
	}
	if body.CV.FullName != "Jane Doe" {
		t.Fatalf("full name should stay untranslated, got %q", body.CV.FullName)
	}
	if body.TranslationNotice != "" {
		t.Fatalf("unexpected translation notice: %q", body.TranslationNotice)
	}
}

func TestPublicCVTranslationUnavailableFallsBack(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer gateway.Close()

	router, store := newPublicTestEnv(t, newTestTranslator(gateway.URL), "")
	seedPublicRecord(t, store, "fallback-slug", true, 0)

	rec := doGet(t, router, "/cv/fallback-slug?lang=fr")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body publicCVResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.CV.Summary != "Backend engineer with ten years of experience." {
		t.Fatalf("summary should fall back to original, got %q", body.CV.Summary)
	}
	if body.TranslationNotice == "" {
		t.Fatal("expected a translation notice")
	}
}

func TestPublicCVSameLanguageSkipsGateway(t *testing.T) {
	calls := 0
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "x"})
	}))
	defer gateway.Close()

	router, store := newPublicTestEnv(t, newTestTranslator(gateway.URL), "")
	seedPublicRecord(t, store, "same-lang-slug", true, 0)

	rec := doGet(t, router, "/cv/same-lang-slug?lang=en")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("gateway called %d times for a same-language request", calls)
	}
}
