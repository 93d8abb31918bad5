package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Rates &amp; spreads</title>
      <link>http://example.com/article1</link>
      <description><![CDATA[<p>Rates <b>fell</b> sharply.</p><img src="http://example.com/a.png">]]></description>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Article 2</title>
      <link>http://example.com/article2</link>
      <description>Second article</description>
      <media:thumbnail url="http://example.com/thumb.jpg"/>
      <pubDate>Mon, 01 Jan 2024 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>No link</title>
      <description>dropped</description>
    </item>
  </channel>
</rss>`

func rssServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	server := rssServer(t, testRSS)
	src := model.Source{Name: "Test Feed", Category: model.CategoryMortgage, RSS: server.URL}
	f := NewFetcher([]model.Source{src}, time.Second, otel.NewNullLogger())

	articles, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles (linkless item dropped), got %d", len(articles))
	}

	a := articles[0]
	if a.Title != "Rates & spreads" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Summary != "Rates fell sharply." {
		t.Errorf("summary should be plain text, got %q", a.Summary)
	}
	if a.ImageURL != "http://example.com/a.png" {
		t.Errorf("image = %q, want first <img>", a.ImageURL)
	}
	if a.Source != "Test Feed" || a.Category != model.CategoryMortgage {
		t.Errorf("source/category not carried: %+v", a)
	}
	if !a.PubDate.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("pubDate = %v", a.PubDate)
	}

	if articles[1].ImageURL != "http://example.com/thumb.jpg" {
		t.Errorf("media thumbnail not used: %q", articles[1].ImageURL)
	}
}

func TestFetch404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	src := model.Source{Name: "Missing", RSS: server.URL}
	f := NewFetcher(nil, time.Second, nil)
	if _, err := f.Fetch(context.Background(), src); err == nil {
		t.Error("expected error for 404")
	}
}

func TestFetchCancelledContext(t *testing.T) {
	f := NewFetcher(nil, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, model.Source{RSS: "http://example.com"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestFetchAllDedupsAndSkipsFailures(t *testing.T) {
	good := rssServer(t, testRSS)
	dup := rssServer(t, testRSS)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	f := NewFetcher([]model.Source{
		{Name: "Good", Category: model.CategoryMortgage, RSS: good.URL},
		{Name: "Bad", Category: model.CategoryMortgage, RSS: bad.URL},
		{Name: "Dup", Category: model.CategoryMortgage, RSS: dup.URL},
	}, time.Second, otel.NewNullLogger())

	articles, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 unique articles, got %d", len(articles))
	}
	for _, a := range articles {
		if a.Source != "Good" {
			t.Errorf("first source should win dedup, got %q", a.Source)
		}
	}
}

func TestTextFromHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain   text\n here", "plain text here"},
		{"<p>Hello <em>world</em></p><script>alert(1)</script>", "Hello world"},
		{"Fish &amp; chips", "Fish & chips"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TextFromHTML(tt.in); got != tt.want {
			t.Errorf("TextFromHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFirstImage(t *testing.T) {
	if got := FirstImage(`<p>x</p><img alt="a"><img src=" http://x/y.png ">`); got != "http://x/y.png" {
		t.Errorf("FirstImage = %q", got)
	}
	if got := FirstImage("no images"); got != "" {
		t.Errorf("FirstImage = %q, want empty", got)
	}
}

func TestDefaultSourcesCoverEveryCategory(t *testing.T) {
	srcs := DefaultSources()
	for _, c := range model.Categories() {
		if len(ForCategory(srcs, c)) == 0 {
			t.Errorf("no default sources for %s", c)
		}
	}
	if len(ForCategory(srcs, model.CategoryAll)) != len(srcs) {
		t.Error("CategoryAll should return every source")
	}
	for _, s := range srcs {
		if !strings.HasPrefix(s.RSS, "https://") {
			t.Errorf("%s: feed URL should be https: %s", s.Name, s.RSS)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
