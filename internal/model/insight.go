package model

import "time"

// ThemeKind records how a theme came to exist.
type ThemeKind string

const (
	// ThemeGenerated themes come from the model response or the fallback grouping.
	ThemeGenerated ThemeKind = "generated"

	// ThemeCoverage is the catch-all theme that coverage repair appends to.
	ThemeCoverage ThemeKind = "synthesized-coverage"
)

// CoverageThemeName and CoverageThemeIcon describe the catch-all theme.
const (
	CoverageThemeName = "Industry Commentary & Updates"
	CoverageThemeIcon = "📰"
)

// ArticleRef is an article embedded by value in an insight. Source
// articles age out of the store, so insights carry their own copy.
type ArticleRef struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	Summary string    `json:"summary,omitempty"`
	Source  string    `json:"source"`
	Link    string    `json:"link"`
	PubDate time.Time `json:"pubDate"`
}

// Insight is a single observation backed by articles.
type Insight struct {
	Text     string       `json:"text"`
	Articles []ArticleRef `json:"articles"`
}

// ThemeAction is a suggested follow-up scoped to one theme.
type ThemeAction struct {
	Action string `json:"action"`
	Impact string `json:"impact,omitempty"`
}

// Theme groups related insights.
type Theme struct {
	Name     string        `json:"name"`
	Icon     string        `json:"icon"`
	Kind     ThemeKind     `json:"kind"`
	Insights []Insight     `json:"insights"`
	Actions  []ThemeAction `json:"actions,omitempty"`
}

// RecommendedAction is a top-level takeaway (the "tl;dr").
type RecommendedAction struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale,omitempty"`
	Category  string `json:"category,omitempty"`
}

// InsightSet is one generation result for a category.
type InsightSet struct {
	Category           Category            `json:"category"`
	RecommendedActions []RecommendedAction `json:"recommendedActions"`
	Themes             []Theme             `json:"themes"`
	ArticleCount       int                 `json:"articleCount"`
	DateRangeStart     time.Time           `json:"dateRangeStart"`
	DateRangeEnd       time.Time           `json:"dateRangeEnd"`
	GeneratedAt        time.Time           `json:"generatedAt"`
	Success            bool                `json:"success"`
	Fallback           bool                `json:"fallback,omitempty"`
	Message            string              `json:"message,omitempty"`
}

// ArchivedInsight is an InsightSet persisted in the archive. Records are
// never edited; a newer record for the same category supersedes it.
type ArchivedInsight struct {
	ID string `json:"id"`
	InsightSet
}

// ArchiveFilter selects archived records for browsing.
type ArchiveFilter struct {
	Category Category
	Start    time.Time
	End      time.Time
	Limit    int
}

// Sources returns the distinct sources referenced by the set's insights.
func (s InsightSet) Sources() map[string]bool {
	seen := make(map[string]bool)
	for _, th := range s.Themes {
		for _, in := range th.Insights {
			for _, a := range in.Articles {
				seen[a.Source] = true
			}
		}
	}
	return seen
}
