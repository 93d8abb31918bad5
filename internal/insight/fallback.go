package insight

import (
	"fmt"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

const fallbackThemeIcon = "🗂️"

// Fallback builds the deterministic, model-free result: one theme per
// source in first-seen order, each holding a single count insight.
func Fallback(category model.Category, articles []model.Article, now time.Time, reason string) model.InsightSet {
	type group struct {
		name string
		refs []model.ArticleRef
	}
	var groups []*group
	bySource := make(map[string]*group)
	for i, a := range articles {
		g, ok := bySource[a.Source]
		if !ok {
			g = &group{name: a.Source}
			bySource[a.Source] = g
			groups = append(groups, g)
		}
		g.refs = append(g.refs, refFor(i, a, summaryPromptLen))
	}

	themes := make([]model.Theme, 0, len(groups))
	for _, g := range groups {
		noun := "articles"
		if len(g.refs) == 1 {
			noun = "article"
		}
		refs := g.refs
		if len(refs) > maxCoverageArticles {
			refs = refs[:maxCoverageArticles]
		}
		name := g.name
		if name == "" {
			name = "Unknown source"
		}
		themes = append(themes, model.Theme{
			Name: name,
			Icon: fallbackThemeIcon,
			Kind: model.ThemeGenerated,
			Insights: []model.Insight{{
				Text:     fmt.Sprintf("%d %s from %s", len(g.refs), noun, name),
				Articles: refs,
			}},
		})
	}

	start, end := dateRange(articles)
	return model.InsightSet{
		Category:           category,
		RecommendedActions: []model.RecommendedAction{},
		Themes:             themes,
		ArticleCount:       len(articles),
		DateRangeStart:     start,
		DateRangeEnd:       end,
		GeneratedAt:        now,
		Success:            true,
		Fallback:           true,
		Message:            reason,
	}
}

// dateRange returns the earliest and latest PubDate in articles.
func dateRange(articles []model.Article) (time.Time, time.Time) {
	var start, end time.Time
	for _, a := range articles {
		if a.PubDate.IsZero() {
			continue
		}
		if start.IsZero() || a.PubDate.Before(start) {
			start = a.PubDate
		}
		if end.IsZero() || a.PubDate.After(end) {
			end = a.PubDate
		}
	}
	return start, end
}
