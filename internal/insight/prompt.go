package insight

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

const (
	// MaxPromptArticles bounds how many articles go into a single prompt.
	MaxPromptArticles = 50

	// summaryPromptLen caps each article summary in the prompt, in runes.
	summaryPromptLen = 300
)

// Summaries converts the first MaxPromptArticles articles into prompt
// references. ID is the index into the returned slice.
func Summaries(articles []model.Article) []model.ArticleRef {
	n := len(articles)
	if n > MaxPromptArticles {
		n = MaxPromptArticles
	}
	refs := make([]model.ArticleRef, n)
	for i := 0; i < n; i++ {
		refs[i] = refFor(i, articles[i], summaryPromptLen)
	}
	return refs
}

func refFor(id int, a model.Article, summaryLen int) model.ArticleRef {
	return model.ArticleRef{
		ID:      id,
		Title:   a.Title,
		Summary: truncateRunes(strings.TrimSpace(a.Summary), summaryLen),
		Source:  a.Source,
		Link:    a.Link,
		PubDate: a.PubDate,
	}
}

const insightsPrompt = `You are an analyst writing a briefing for a %s audience.

Below are %d recent articles as JSON. Each has an "id".

Articles:
%s

Sources represented: %s

Return ONLY a JSON object with this exact shape:
{
  "recommendedActions": [
    {"action": "<what to do>", "rationale": "<why, citing the articles>", "category": "<short label>"}
  ],
  "themes": [
    {
      "name": "<theme name>",
      "icon": "<single emoji>",
      "insights": [
        {"text": "<one or two sentence observation>", "articleIds": [<article ids>]}
      ],
      "actions": [
        {"action": "<follow-up>", "impact": "<expected impact>"}
      ]
    }
  ]
}

Rules:
- Provide 5 to 7 recommended actions.
- Provide 5 to 7 themes, each with at least one insight.
- Every insight must cite articles by id using only ids from the list above.
- Every source listed above must appear in at least one insight.
- Do not include any text outside the JSON object.`

type promptArticle struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Source  string `json:"source"`
	Link    string `json:"link"`
	PubDate string `json:"pubDate,omitempty"`
}

// BuildPrompt renders the insights prompt for category over refs.
func BuildPrompt(category model.Category, refs []model.ArticleRef) (string, error) {
	items := make([]promptArticle, len(refs))
	for i, r := range refs {
		items[i] = promptArticle{
			ID:      r.ID,
			Title:   r.Title,
			Summary: r.Summary,
			Source:  r.Source,
			Link:    r.Link,
		}
		if !r.PubDate.IsZero() {
			items[i].PubDate = r.PubDate.Format(time.DateOnly)
		}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode articles: %w", err)
	}

	sources := distinctSources(refs)
	return fmt.Sprintf(insightsPrompt, category.Label(), len(refs), data, strings.Join(sources, ", ")), nil
}

// distinctSources returns sources in first-seen order.
func distinctSources(refs []model.ArticleRef) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range refs {
		if r.Source == "" || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		out = append(out, r.Source)
	}
	return out
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
