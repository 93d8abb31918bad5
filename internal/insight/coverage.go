package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abelbrown/pulse/internal/model"
)

// maxCoverageArticles caps the articles attached to a synthesized insight.
const maxCoverageArticles = 5

// Repair makes sure every source in refs is cited by at least one insight.
// Each uncited source gets one synthesized insight in the coverage theme,
// which is created if absent. Repair is idempotent and does not modify its
// input.
func Repair(themes []model.Theme, refs []model.ArticleRef) []model.Theme {
	out, _ := repair(themes, refs)
	return out
}

// repair also returns the sources that were missing, sorted.
func repair(themes []model.Theme, refs []model.ArticleRef) ([]model.Theme, []string) {
	missing := MissingSources(themes, refs)
	if len(missing) == 0 {
		return themes, nil
	}

	out := make([]model.Theme, len(themes), len(themes)+1)
	copy(out, themes)

	idx := -1
	for i, th := range out {
		if th.Kind == model.ThemeCoverage {
			idx = i
			break
		}
	}
	if idx < 0 {
		out = append(out, model.Theme{
			Name: model.CoverageThemeName,
			Icon: model.CoverageThemeIcon,
			Kind: model.ThemeCoverage,
		})
		idx = len(out) - 1
	}

	cov := out[idx]
	insights := make([]model.Insight, len(cov.Insights), len(cov.Insights)+len(missing))
	copy(insights, cov.Insights)

	bySource := make(map[string][]model.ArticleRef)
	for _, r := range refs {
		bySource[r.Source] = append(bySource[r.Source], r)
	}
	for _, src := range missing {
		insights = append(insights, coverageInsight(src, bySource[src]))
	}
	cov.Insights = insights
	out[idx] = cov
	return out, missing
}

// coverageRefs references every input article, including those past the
// prompt window, so a source only present there is still covered.
func coverageRefs(articles []model.Article) []model.ArticleRef {
	refs := make([]model.ArticleRef, len(articles))
	for i, a := range articles {
		refs[i] = refFor(i, a, summaryPromptLen)
	}
	return refs
}

// MissingSources lists sources in refs that no insight cites, sorted.
func MissingSources(themes []model.Theme, refs []model.ArticleRef) []string {
	cited := make(map[string]bool)
	for _, th := range themes {
		for _, in := range th.Insights {
			for _, a := range in.Articles {
				cited[a.Source] = true
			}
		}
	}
	var missing []string
	seen := make(map[string]bool)
	for _, r := range refs {
		if r.Source == "" || cited[r.Source] || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		missing = append(missing, r.Source)
	}
	sort.Strings(missing)
	return missing
}

func coverageInsight(source string, articles []model.ArticleRef) model.Insight {
	noun := "articles"
	if len(articles) == 1 {
		noun = "article"
	}
	text := fmt.Sprintf("%s published %d %s in this period", source, len(articles), noun)
	if len(articles) <= 3 {
		titles := make([]string, len(articles))
		for i, a := range articles {
			titles[i] = fmt.Sprintf("%q", a.Title)
		}
		text += ": " + strings.Join(titles, ", ")
	}
	text += "."

	if len(articles) > maxCoverageArticles {
		articles = articles[:maxCoverageArticles]
	}
	refs := make([]model.ArticleRef, len(articles))
	copy(refs, articles)
	return model.Insight{Text: text, Articles: refs}
}
