package fetch

import "github.com/abelbrown/pulse/internal/model"

// DefaultSources returns the built-in feed list, grouped by category.
func DefaultSources() []model.Source {
	return []model.Source{
		// Mortgage
		{Name: "HousingWire", Category: model.CategoryMortgage, RSS: "https://www.housingwire.com/feed/"},
		{Name: "National Mortgage News", Category: model.CategoryMortgage, RSS: "https://www.nationalmortgagenews.com/feed"},
		{Name: "Mortgage News Daily", Category: model.CategoryMortgage, RSS: "https://www.mortgagenewsdaily.com/rss/news"},
		{Name: "Calculated Risk", Category: model.CategoryMortgage, RSS: "https://www.calculatedriskblog.com/feeds/posts/default"},

		// Product management
		{Name: "Mind the Product", Category: model.CategoryProductManagement, RSS: "https://www.mindtheproduct.com/feed/"},
		{Name: "Lenny's Newsletter", Category: model.CategoryProductManagement, RSS: "https://www.lennysnewsletter.com/feed"},
		{Name: "SVPG", Category: model.CategoryProductManagement, RSS: "https://www.svpg.com/feed/"},
		{Name: "Product Talk", Category: model.CategoryProductManagement, RSS: "https://www.producttalk.org/feed/"},

		// Competitor intel
		{Name: "TechCrunch Fintech", Category: model.CategoryCompetitorIntel, RSS: "https://techcrunch.com/category/fintech/feed/"},
		{Name: "Finextra", Category: model.CategoryCompetitorIntel, RSS: "https://www.finextra.com/rss/headlines.aspx"},
		{Name: "American Banker", Category: model.CategoryCompetitorIntel, RSS: "https://www.americanbanker.com/feed"},
	}
}

// ForCategory filters sources to category. CategoryAll returns everything.
func ForCategory(sources []model.Source, category model.Category) []model.Source {
	if category.IsAll() {
		return sources
	}
	var out []model.Source
	for _, s := range sources {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}
