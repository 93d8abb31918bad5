package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/pulse/internal/archive"
	"github.com/abelbrown/pulse/internal/cache"
	"github.com/abelbrown/pulse/internal/insight"
	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
	"github.com/abelbrown/pulse/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRefresher struct {
	fetched, added int
	err            error
	calls          int
}

func (s *stubRefresher) Refresh(ctx context.Context) (int, int, error) {
	s.calls++
	return s.fetched, s.added, s.err
}

type fixture struct {
	router *gin.Engine
	store  *store.Store
	log    *otel.Logger
}

func newFixture(t *testing.T, refresher Refresher) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := otel.NewNullLogger()
	log.SetRingBuffer(otel.NewRingBuffer(16))
	t.Cleanup(log.Close)

	gen := insight.NewGenerator(nil, log)
	svc := insight.NewService(gen, cache.New(st, time.UTC, log), st, log)

	d := Deps{
		Insights: svc,
		Archive:  archive.New(st, log),
		Sources: []model.Source{
			{Name: "HousingWire", Category: model.CategoryMortgage, RSS: "https://example.com/hw"},
			{Name: "Mind the Product", Category: model.CategoryProductManagement, RSS: "https://example.com/mtp"},
		},
		Log:      log,
		Location: time.UTC,
	}
	if refresher != nil {
		d.Refresher = refresher
	}
	return &fixture{router: NewRouter(d), store: st, log: log}
}

func (f *fixture) seed(t *testing.T, category model.Category, sources ...string) {
	t.Helper()
	now := time.Now()
	var articles []model.Article
	for _, src := range sources {
		articles = append(articles, model.Article{
			Title:    src + " headline",
			Link:     "https://" + strings.ToLower(src) + ".example.com/1",
			Source:   src,
			Category: category,
			Summary:  "rates moved",
			PubDate:  now.Add(-time.Hour),
		})
	}
	if _, err := f.store.UpsertArticles(articles); err != nil {
		t.Fatalf("UpsertArticles: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["llm"] != false {
		t.Errorf("llm = %v, want false", body["llm"])
	}
}

func TestSourcesFilter(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		query string
		code  int
		count float64
	}{
		{"", http.StatusOK, 2},
		{"?category=mortgage", http.StatusOK, 1},
		{"?category=all", http.StatusOK, 2},
		{"?category=crypto", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		w := f.do(t, http.MethodGet, "/api/sources"+tt.query)
		if w.Code != tt.code {
			t.Errorf("%q: status = %d, want %d", tt.query, w.Code, tt.code)
			continue
		}
		if tt.code == http.StatusOK {
			body := decode[map[string]any](t, w)
			if body["count"] != tt.count {
				t.Errorf("%q: count = %v, want %v", tt.query, body["count"], tt.count)
			}
		}
	}
}

func TestArticlesQuery(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, model.CategoryMortgage, "HousingWire", "MBA")
	f.seed(t, model.CategoryProductManagement, "Lenny")

	w := f.do(t, http.MethodGet, "/api/articles?category=mortgage")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[struct {
		Articles []model.Article `json:"articles"`
		Count    int             `json:"count"`
	}](t, w)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}

	w = f.do(t, http.MethodGet, "/api/articles?source=Lenny")
	body = decode[struct {
		Articles []model.Article `json:"articles"`
		Count    int             `json:"count"`
	}](t, w)
	if body.Count != 1 || body.Articles[0].Source != "Lenny" {
		t.Errorf("source filter = %+v", body)
	}
}

func TestArticlesRejectsBadParams(t *testing.T) {
	f := newFixture(t, nil)
	for _, q := range []string{
		"?start=yesterday",
		"?end=2024-13-01",
		"?limit=-1",
		"?limit=ten",
		"?category=weather",
	} {
		w := f.do(t, http.MethodGet, "/api/articles"+q)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"error"`) {
			t.Errorf("%s: body = %s", q, w.Body.String())
		}
	}
}

func TestInsightsRejectsCategory(t *testing.T) {
	f := newFixture(t, nil)
	for _, cat := range []string{"all", "weather"} {
		w := f.do(t, http.MethodGet, "/api/insights/"+cat)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", cat, w.Code)
		}
	}
}

func TestInsightsFallbackWithoutModel(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, model.CategoryMortgage, "HousingWire", "MBA")

	w := f.do(t, http.MethodGet, "/api/insights/mortgage")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	rec := decode[model.ArchivedInsight](t, w)
	if !rec.Success || !rec.Fallback {
		t.Errorf("success=%v fallback=%v, want both true", rec.Success, rec.Fallback)
	}
	if len(rec.Themes) != 2 {
		t.Errorf("themes = %d, want one per source", len(rec.Themes))
	}

	// Fallbacks are served but never archived.
	w = f.do(t, http.MethodGet, "/api/archive")
	body := decode[map[string]any](t, w)
	if body["count"] != float64(0) {
		t.Errorf("archive count = %v, want 0", body["count"])
	}
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, model.CategoryCompetitorIntel, "Rocket")

	w := f.do(t, http.MethodPost, "/api/insights/competitor-intel/regenerate")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	rec := decode[model.ArchivedInsight](t, w)
	if rec.Category != model.CategoryCompetitorIntel {
		t.Errorf("category = %q", rec.Category)
	}

	if w := f.do(t, http.MethodGet, "/api/insights/competitor-intel/regenerate"); w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET regenerate status = %d", w.Code)
	}
}

func archivedSet(category model.Category, theme string) model.ArchivedInsight {
	now := time.Now()
	return model.ArchivedInsight{InsightSet: model.InsightSet{
		Category: category,
		Themes: []model.Theme{{
			Name:     theme,
			Insights: []model.Insight{{Text: theme + " is accelerating"}},
		}},
		RecommendedActions: []model.RecommendedAction{},
		ArticleCount:       3,
		DateRangeStart:     now.AddDate(0, 0, -7),
		DateRangeEnd:       now,
		GeneratedAt:        now,
		Success:            true,
	}}
}

func TestArchiveRoutes(t *testing.T) {
	f := newFixture(t, nil)
	saved, err := f.store.SaveInsight(archivedSet(model.CategoryMortgage, "Refinance wave"))
	if err != nil {
		t.Fatalf("SaveInsight: %v", err)
	}
	if _, err := f.store.SaveInsight(archivedSet(model.CategoryProductManagement, "Roadmaps")); err != nil {
		t.Fatalf("SaveInsight: %v", err)
	}

	w := f.do(t, http.MethodGet, "/api/archive?category=mortgage")
	body := decode[struct {
		Insights []model.ArchivedInsight `json:"insights"`
		Count    int                     `json:"count"`
	}](t, w)
	if body.Count != 1 || body.Insights[0].ID != saved.ID {
		t.Errorf("browse = %+v", body)
	}

	w = f.do(t, http.MethodGet, "/api/archive/"+saved.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decode[model.ArchivedInsight](t, w); got.Themes[0].Name != "Refinance wave" {
		t.Errorf("get theme = %q", got.Themes[0].Name)
	}

	if w := f.do(t, http.MethodGet, "/api/archive/missing-id"); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/archive/search?q=refinance")
	body = decode[struct {
		Insights []model.ArchivedInsight `json:"insights"`
		Count    int                     `json:"count"`
	}](t, w)
	if body.Count != 1 {
		t.Errorf("search count = %d, want 1", body.Count)
	}

	if w := f.do(t, http.MethodGet, "/api/archive/search?q=%20"); w.Code != http.StatusBadRequest {
		t.Errorf("blank q status = %d, want 400", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/archive?start=03-01-2024"); w.Code != http.StatusBadRequest {
		t.Errorf("bad start status = %d, want 400", w.Code)
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodPost, "/api/refresh"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no refresher status = %d, want 503", w.Code)
	}

	r := &stubRefresher{fetched: 12, added: 4}
	f = newFixture(t, r)
	w := f.do(t, http.MethodPost, "/api/refresh")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[map[string]float64](t, w)
	if body["fetched"] != 12 || body["added"] != 4 || r.calls != 1 {
		t.Errorf("body = %v calls = %d", body, r.calls)
	}

	r = &stubRefresher{err: errors.New("feeds down")}
	f = newFixture(t, r)
	if w := f.do(t, http.MethodPost, "/api/refresh"); w.Code != http.StatusBadGateway {
		t.Errorf("failing refresh status = %d, want 502", w.Code)
	}
}

func TestEventsReportsBufferStats(t *testing.T) {
	f := newFixture(t, nil)
	rb := f.log.RingBuffer()
	rb.Push(otel.Event{Kind: otel.KindCacheHit})
	rb.Push(otel.Event{Kind: otel.KindCacheHit})
	rb.Push(otel.Event{Kind: otel.KindGenerate})

	w := f.do(t, http.MethodGet, "/api/events?n=1")
	body := decode[struct {
		Count    int                    `json:"count"`
		Capacity int                    `json:"capacity"`
		Total    uint64                 `json:"total"`
		Kinds    map[otel.EventKind]int `json:"kinds"`
	}](t, w)
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
	if body.Capacity != 16 {
		t.Errorf("capacity = %d, want 16", body.Capacity)
	}
	if body.Total < 3 {
		t.Errorf("total = %d, want at least 3", body.Total)
	}
	if body.Kinds[otel.KindCacheHit] != 2 || body.Kinds[otel.KindGenerate] != 1 {
		t.Errorf("kinds = %v", body.Kinds)
	}
}

func TestEvents(t *testing.T) {
	f := newFixture(t, nil)
	rb := f.log.RingBuffer()
	rb.Push(otel.Event{Kind: otel.KindFetchComplete, Level: otel.LevelInfo, Source: "HousingWire"})
	rb.Push(otel.Event{Kind: otel.KindCacheHit, Level: otel.LevelInfo, Category: "mortgage"})
	rb.Push(otel.Event{Kind: otel.KindCacheMiss, Level: otel.LevelInfo, Category: "rates"})
	rb.Push(otel.Event{Kind: otel.KindFallback, Level: otel.LevelWarn, Category: "mortgage"})

	type eventsBody struct {
		Events []otel.Event `json:"events"`
		Count  int          `json:"count"`
	}
	tests := []struct {
		query string
		want  []otel.EventKind
	}{
		{"?kind=insight.", []otel.EventKind{otel.KindCacheHit, otel.KindCacheMiss, otel.KindFallback}},
		{"?kind=insight.&n=1", []otel.EventKind{otel.KindFallback}},
		{"?category=mortgage", []otel.EventKind{otel.KindCacheHit, otel.KindFallback}},
		{"?level=warn", []otel.EventKind{otel.KindFallback}},
		{"?kind=llm.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/api/events"+tt.query)
			body := decode[eventsBody](t, w)
			if body.Count != len(tt.want) || len(body.Events) != len(tt.want) {
				t.Fatalf("count = %d, want %d", body.Count, len(tt.want))
			}
			for i, k := range tt.want {
				if body.Events[i].Kind != k {
					t.Errorf("event %d = %q, want %q", i, body.Events[i].Kind, k)
				}
			}
		})
	}

	w := f.do(t, http.MethodGet, "/api/events?level=loud")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad level status = %d, want 400", w.Code)
	}
}
