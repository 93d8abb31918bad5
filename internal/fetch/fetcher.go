// Package fetch retrieves RSS and Atom feeds and converts their entries to
// model.Article values. It does not persist anything.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
)

const (
	// DefaultTimeout bounds a single source fetch.
	DefaultTimeout = 30 * time.Second

	// maxConcurrentFetches limits parallel source fetches in FetchAll.
	maxConcurrentFetches = 5

	// summaryLen caps the plain-text summary derived from feed HTML, in runes.
	summaryLen = 1000

	userAgent = "pulse/1.0 (+https://github.com/abelbrown/pulse)"
)

// Fetcher retrieves articles from a fixed set of sources.
type Fetcher struct {
	client  *http.Client
	sources []model.Source
	timeout time.Duration
	log     *otel.Logger
}

// NewFetcher creates a Fetcher for sources. The source slice is copied.
func NewFetcher(sources []model.Source, timeout time.Duration, log *otel.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	srcs := make([]model.Source, len(sources))
	copy(srcs, sources)
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		sources: srcs,
		timeout: timeout,
		log:     log,
	}
}

// Sources returns the configured sources.
func (f *Fetcher) Sources() []model.Source {
	out := make([]model.Source, len(f.sources))
	copy(out, f.sources)
	return out
}

// Fetch retrieves and converts one source's entries.
func (f *Fetcher) Fetch(ctx context.Context, src model.Source) ([]model.Article, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.RSS, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	articles := make([]model.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		a, ok := convertFeedItem(item, src, now)
		if ok {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

// FetchAll fetches every source in parallel. A failing source is logged and
// skipped. Articles are deduplicated by link, first source wins.
func (f *Fetcher) FetchAll(ctx context.Context) ([]model.Article, error) {
	var (
		mu      sync.Mutex
		results = make([][]model.Article, len(f.sources))
	)

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for i, src := range f.sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			articles := f.fetchSource(ctx, src)
			mu.Lock()
			results[i] = articles
			mu.Unlock()
			return nil // errors are reported per source
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []model.Article
	for _, batch := range results {
		for _, a := range batch {
			if seen[a.Link] {
				continue
			}
			seen[a.Link] = true
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, src model.Source) []model.Article {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	articles, err := f.Fetch(fetchCtx, src)
	if err != nil {
		f.log.Emit(otel.Event{
			Level:    otel.LevelWarn,
			Kind:     otel.KindFetchError,
			Comp:     "fetch",
			Source:   src.Name,
			Category: string(src.Category),
			Dur:      time.Since(start),
			Err:      err.Error(),
		})
		return nil
	}
	f.log.Emit(otel.Event{
		Level:    otel.LevelInfo,
		Kind:     otel.KindFetchComplete,
		Comp:     "fetch",
		Source:   src.Name,
		Category: string(src.Category),
		Dur:      time.Since(start),
		Count:    len(articles),
	})
	return articles
}

// convertFeedItem converts a gofeed.Item. Items without a link are skipped.
func convertFeedItem(item *gofeed.Item, src model.Source, fetchTime time.Time) (model.Article, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	if link == "" {
		return model.Article{}, false
	}

	published := fetchTime
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	summary := TextFromHTML(item.Description)
	if summary == "" {
		summary = TextFromHTML(item.Content)
	}

	return model.Article{
		Title:           strings.TrimSpace(TextFromHTML(item.Title)),
		Link:            link,
		Source:          src.Name,
		Category:        src.Category,
		Summary:         truncate(summary, summaryLen),
		OriginalContent: TextFromHTML(content),
		ImageURL:        imageFor(item),
		PubDate:         published,
		SavedAt:         fetchTime,
	}, true
}

// imageFor picks the item image: feed image, image enclosure, media
// extension, then the first <img> in the HTML.
func imageFor(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	if img := FirstImage(item.Content); img != "" {
		return img
	}
	return FirstImage(item.Description)
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
