package model

import "time"

// Article is a fetched feed entry. Link is its identity.
type Article struct {
	Title           string    `json:"title"`
	Link            string    `json:"link"`
	Source          string    `json:"source"`
	Category        Category  `json:"category"`
	Summary         string    `json:"summary"`
	OriginalContent string    `json:"originalContent,omitempty"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	PubDate         time.Time `json:"pubDate"`
	SavedAt         time.Time `json:"savedAt"`
}

// ArticleFilter selects articles. Zero fields are ignored; set fields are ANDed.
type ArticleFilter struct {
	Source   string
	Category Category
	Start    time.Time
	End      time.Time // normalized to end of day by the store
	Keyword  string
	Limit    int
}

// Source is a configured RSS feed.
type Source struct {
	Name     string   `json:"name" yaml:"name"`
	Category Category `json:"category" yaml:"category"`
	RSS      string   `json:"rss" yaml:"rss"`
}
