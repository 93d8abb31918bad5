package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestOpen(t *testing.T) {
	st := openTestStore(t)

	for _, table := range []string{"articles", "insights"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not created: %v", table, err)
		}
	}
}

func TestUpsertArticles(t *testing.T) {
	st := openTestStore(t)

	now := time.Now()
	articles := []model.Article{
		{Title: "Rates fall", Link: "https://example.com/1", Source: "HousingWire", Category: model.CategoryMortgage, PubDate: now},
		{Title: "Roadmaps", Link: "https://example.com/2", Source: "Mind the Product", Category: model.CategoryProductManagement, PubDate: now.Add(-time.Hour)},
	}

	count, err := st.UpsertArticles(articles)
	if err != nil {
		t.Fatalf("UpsertArticles failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 new articles, got %d", count)
	}

	got, err := st.QueryArticles(model.ArticleFilter{})
	if err != nil {
		t.Fatalf("QueryArticles failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if got[0].Link != "https://example.com/1" {
		t.Errorf("expected newest first, got %q", got[0].Link)
	}
}

func TestUpsertArticlesUpdatesMutableFields(t *testing.T) {
	st := openTestStore(t)

	pub := date("2024-03-01")
	saved := date("2024-03-02")
	a := model.Article{
		Title:    "Original",
		Link:     "https://example.com/a",
		Source:   "X",
		Category: model.CategoryMortgage,
		Summary:  "first summary",
		PubDate:  pub,
		SavedAt:  saved,
	}
	if _, err := st.UpsertArticles([]model.Article{a}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	a.Title = "Updated"
	a.Summary = "second summary"
	a.SavedAt = saved.Add(24 * time.Hour)
	count, err := st.UpsertArticles([]model.Article{a})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 new articles on re-fetch, got %d", count)
	}

	got, _ := st.QueryArticles(model.ArticleFilter{})
	if len(got) != 1 {
		t.Fatalf("expected 1 article, got %d", len(got))
	}
	if got[0].Title != "Updated" || got[0].Summary != "second summary" {
		t.Errorf("mutable fields not updated: %+v", got[0])
	}
	if !got[0].SavedAt.Equal(saved) {
		t.Errorf("saved_at changed on update: got %v, want %v", got[0].SavedAt, saved)
	}
}

func TestUpsertArticleRejectsEmptyLink(t *testing.T) {
	st := openTestStore(t)

	if err := st.UpsertArticle(model.Article{Title: "no link"}); err != ErrEmptyLink {
		t.Errorf("expected ErrEmptyLink, got %v", err)
	}

	// Batch form skips rather than fails.
	n, err := st.UpsertArticles([]model.Article{{Title: "no link"}})
	if err != nil || n != 0 {
		t.Errorf("expected (0, nil), got (%d, %v)", n, err)
	}
}

func TestUpsertTruncatesContent(t *testing.T) {
	st := openTestStore(t)
	st.SetLimits(Limits{Summary: 10, Content: 20})

	err := st.UpsertArticle(model.Article{
		Title:           "t",
		Link:            "https://example.com/long",
		Source:          "X",
		Summary:         strings.Repeat("é", 50),
		OriginalContent: strings.Repeat("a", 100),
		PubDate:         time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}

	got, _ := st.QueryArticles(model.ArticleFilter{})
	if n := len([]rune(got[0].Summary)); n != 10 {
		t.Errorf("summary length = %d runes, want 10", n)
	}
	if n := len(got[0].OriginalContent); n != 20 {
		t.Errorf("content length = %d, want 20", n)
	}
}

func TestQueryArticlesFilters(t *testing.T) {
	st := openTestStore(t)

	_, err := st.UpsertArticles([]model.Article{
		{Title: "First", Link: "a", Source: "X", Category: model.CategoryMortgage, PubDate: date("2024-01-01")},
		{Title: "Second", Link: "b", Source: "Y", Category: model.CategoryCompetitorIntel, PubDate: date("2024-02-01")},
	})
	if err != nil {
		t.Fatalf("UpsertArticles: %v", err)
	}

	tests := []struct {
		name   string
		filter model.ArticleFilter
		want   []string
	}{
		{"by source", model.ArticleFilter{Source: "X"}, []string{"a"}},
		{"by start date", model.ArticleFilter{Start: date("2024-01-15")}, []string{"b"}},
		{"end date inclusive", model.ArticleFilter{End: date("2024-01-01")}, []string{"a"}},
		{"by category", model.ArticleFilter{Category: model.CategoryCompetitorIntel}, []string{"b"}},
		{"all category", model.ArticleFilter{Category: model.CategoryAll}, []string{"b", "a"}},
		{"keyword case-insensitive", model.ArticleFilter{Keyword: "SEC"}, []string{"b"}},
		{"filters AND", model.ArticleFilter{Source: "X", Start: date("2024-01-15")}, nil},
		{"limit", model.ArticleFilter{Limit: 1}, []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.QueryArticles(tt.filter)
			if err != nil {
				t.Fatalf("QueryArticles: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d articles, want %d", len(got), len(tt.want))
			}
			for i, link := range tt.want {
				if got[i].Link != link {
					t.Errorf("result[%d] = %q, want %q", i, got[i].Link, link)
				}
			}
		})
	}
}

func TestQueryArticlesKeywordIsLiteral(t *testing.T) {
	st := openTestStore(t)

	_, _ = st.UpsertArticles([]model.Article{
		{Title: "100% fixed rate", Link: "a", Source: "X", PubDate: time.Now()},
		{Title: "1000 homes", Link: "b", Source: "X", PubDate: time.Now()},
	})

	got, err := st.QueryArticles(model.ArticleFilter{Keyword: "0%"})
	if err != nil {
		t.Fatalf("QueryArticles: %v", err)
	}
	if len(got) != 1 || got[0].Link != "a" {
		t.Errorf("expected only the literal match, got %+v", got)
	}
}

func TestQueryArticlesCapsResults(t *testing.T) {
	st := openTestStore(t)

	var batch []model.Article
	base := time.Now()
	for i := 0; i < MaxQueryLimit+20; i++ {
		batch = append(batch, model.Article{
			Title:   "t",
			Link:    "https://example.com/" + time.Duration(i).String(),
			Source:  "X",
			PubDate: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	if _, err := st.UpsertArticles(batch); err != nil {
		t.Fatalf("UpsertArticles: %v", err)
	}

	got, _ := st.QueryArticles(model.ArticleFilter{Limit: 1000})
	if len(got) != MaxQueryLimit {
		t.Errorf("got %d articles, want cap %d", len(got), MaxQueryLimit)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	st := openTestStore(t)

	now := time.Now()
	_, _ = st.UpsertArticles([]model.Article{
		{Title: "old", Link: "old", Source: "X", PubDate: now.AddDate(0, 0, -91)},
		{Title: "recent", Link: "recent", Source: "X", PubDate: now.AddDate(0, 0, -89)},
	})

	removed, err := st.PurgeOlderThan(now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	got, _ := st.QueryArticles(model.ArticleFilter{})
	if len(got) != 1 || got[0].Link != "recent" {
		t.Errorf("expected only the recent article to remain, got %+v", got)
	}
}

func sampleSet(category model.Category, at time.Time) model.InsightSet {
	return model.InsightSet{
		Category: category,
		RecommendedActions: []model.RecommendedAction{
			{Action: "Review pricing", Rationale: "Rates moved", Category: "pricing"},
		},
		Themes: []model.Theme{{
			Name: "Rate volatility",
			Icon: "📉",
			Kind: model.ThemeGenerated,
			Insights: []model.Insight{{
				Text:     "Lenders cut rates",
				Articles: []model.ArticleRef{{Title: "Rates fall", Source: "X", Link: "a"}},
			}},
			Actions: []model.ThemeAction{{Action: "Watch spreads", Impact: "high"}},
		}},
		ArticleCount: 1,
		GeneratedAt:  at,
		Success:      true,
	}
}

func TestSaveInsightRejectsFallback(t *testing.T) {
	st := openTestStore(t)

	set := sampleSet(model.CategoryMortgage, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	set.Fallback = true
	if _, err := st.SaveInsight(model.ArchivedInsight{InsightSet: set}); !errors.Is(err, ErrFallbackInsight) {
		t.Fatalf("SaveInsight(fallback) err = %v, want ErrFallbackInsight", err)
	}
	recs, err := st.ListInsights(model.ArchiveFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("archive rows = %d, want 0", len(recs))
	}
}

func TestSaveAndGetInsight(t *testing.T) {
	st := openTestStore(t)

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	saved, err := st.SaveInsight(model.ArchivedInsight{InsightSet: sampleSet(model.CategoryMortgage, at)})
	if err != nil {
		t.Fatalf("SaveInsight: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}

	got, err := st.GetInsight(saved.ID)
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if !got.GeneratedAt.Equal(at) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, at)
	}
	if len(got.Themes) != 1 || got.Themes[0].Insights[0].Articles[0].Link != "a" {
		t.Errorf("themes not round-tripped: %+v", got.Themes)
	}
	if len(got.RecommendedActions) != 1 || got.RecommendedActions[0].Action != "Review pricing" {
		t.Errorf("actions not round-tripped: %+v", got.RecommendedActions)
	}

	missing, err := st.GetInsight("nope")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing id, got (%v, %v)", missing, err)
	}
}

func TestLatestInsight(t *testing.T) {
	st := openTestStore(t)

	none, err := st.LatestInsight(model.CategoryMortgage)
	if err != nil || none != nil {
		t.Fatalf("expected (nil, nil) with empty archive, got (%v, %v)", none, err)
	}

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		set := sampleSet(model.CategoryMortgage, base.Add(time.Duration(i)*time.Hour))
		if _, err := st.SaveInsight(model.ArchivedInsight{InsightSet: set}); err != nil {
			t.Fatalf("SaveInsight: %v", err)
		}
	}
	_, _ = st.SaveInsight(model.ArchivedInsight{InsightSet: sampleSet(model.CategoryCompetitorIntel, base.Add(10*time.Hour))})

	latest, err := st.LatestInsight(model.CategoryMortgage)
	if err != nil {
		t.Fatalf("LatestInsight: %v", err)
	}
	if want := base.Add(2 * time.Hour); !latest.GeneratedAt.Equal(want) {
		t.Errorf("latest GeneratedAt = %v, want %v", latest.GeneratedAt, want)
	}
}

func TestListInsights(t *testing.T) {
	st := openTestStore(t)

	days := []string{"2024-05-01", "2024-05-02", "2024-05-03"}
	for _, d := range days {
		_, _ = st.SaveInsight(model.ArchivedInsight{InsightSet: sampleSet(model.CategoryMortgage, date(d).Add(12*time.Hour))})
	}
	_, _ = st.SaveInsight(model.ArchivedInsight{InsightSet: sampleSet(model.CategoryProductManagement, date("2024-05-02"))})

	all, err := st.ListInsights(model.ArchiveFilter{})
	if err != nil {
		t.Fatalf("ListInsights: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d records, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].GeneratedAt.After(all[i-1].GeneratedAt) {
			t.Errorf("records not newest-first at %d", i)
		}
	}

	mortgage, _ := st.ListInsights(model.ArchiveFilter{Category: model.CategoryMortgage})
	if len(mortgage) != 3 {
		t.Errorf("category filter: got %d, want 3", len(mortgage))
	}

	ranged, _ := st.ListInsights(model.ArchiveFilter{
		Category: model.CategoryMortgage,
		Start:    date("2024-05-02"),
		End:      date("2024-05-02"),
	})
	if len(ranged) != 1 {
		t.Errorf("date range: got %d, want 1", len(ranged))
	}

	limited, _ := st.ListInsights(model.ArchiveFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limit: got %d, want 2", len(limited))
	}
}

func TestStats(t *testing.T) {
	st := openTestStore(t)

	_, _ = st.UpsertArticles([]model.Article{
		{Title: "a", Link: "a", Source: "X", Category: model.CategoryMortgage, PubDate: date("2024-01-01")},
		{Title: "b", Link: "b", Source: "X", Category: model.CategoryMortgage, PubDate: date("2024-01-03")},
		{Title: "c", Link: "c", Source: "Y", Category: model.CategoryCompetitorIntel, PubDate: date("2024-01-02")},
	})
	_, _ = st.SaveInsight(model.ArchivedInsight{InsightSet: sampleSet(model.CategoryMortgage, time.Now())})

	stats, err := st.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Articles != 3 || stats.Insights != 1 {
		t.Errorf("counts = (%d, %d), want (3, 1)", stats.Articles, stats.Insights)
	}
	if stats.BySource["X"] != 2 || stats.ByCategory["competitor-intel"] != 1 {
		t.Errorf("group counts wrong: %+v %+v", stats.BySource, stats.ByCategory)
	}
	if !stats.OldestArticle.Equal(date("2024-01-01")) || !stats.NewestArticle.Equal(date("2024-01-03")) {
		t.Errorf("span = %v..%v", stats.OldestArticle, stats.NewestArticle)
	}
}

func TestEndOfDay(t *testing.T) {
	loc := time.FixedZone("test", -5*3600)
	got := EndOfDay(time.Date(2024, 2, 1, 3, 0, 0, 0, loc))
	want := time.Date(2024, 2, 1, 23, 59, 59, 999999999, loc)
	if !got.Equal(want) {
		t.Errorf("EndOfDay = %v, want %v", got, want)
	}
}
