package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

// Query result caps.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 100
)

// ErrEmptyLink is returned when an article without a link is upserted.
var ErrEmptyLink = errors.New("article link is empty")

// UpsertArticles inserts or updates articles by link, returning the count of
// new rows. Re-fetching an existing link refreshes title, summary, content
// and image but keeps the row's identity and original saved_at.
// Articles without a link are skipped.
// Thread-safe: acquires write lock.
func (s *Store) UpsertArticles(articles []model.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	exists, err := tx.Prepare("SELECT COUNT(*) FROM articles WHERE link = ?")
	if err != nil {
		return 0, err
	}
	defer exists.Close()

	stmt, err := tx.Prepare(`
		INSERT INTO articles (
			link, title, source, category, summary, original_content,
			image_url, pub_date, saved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(link) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			original_content = excluded.original_content,
			image_url = CASE WHEN excluded.image_url != '' THEN excluded.image_url ELSE articles.image_url END
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	newCount := 0
	for _, a := range articles {
		link := strings.TrimSpace(a.Link)
		if link == "" {
			continue
		}

		var n int
		if err := exists.QueryRow(link).Scan(&n); err != nil {
			return newCount, fmt.Errorf("check %s: %w", link, err)
		}

		savedAt := a.SavedAt
		if savedAt.IsZero() {
			savedAt = now
		}
		pub := a.PubDate
		if pub.IsZero() {
			pub = savedAt
		}

		_, err := stmt.Exec(
			link,
			truncate(a.Title, s.limits.Title),
			a.Source,
			string(a.Category),
			truncate(a.Summary, s.limits.Summary),
			truncate(a.OriginalContent, s.limits.Content),
			a.ImageURL,
			toMillis(pub),
			toMillis(savedAt),
		)
		if err != nil {
			return newCount, fmt.Errorf("upsert %s: %w", link, err)
		}
		if n == 0 {
			newCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return newCount, nil
}

// UpsertArticle is UpsertArticles for a single article. Unlike the batch
// form it rejects an empty link.
func (s *Store) UpsertArticle(a model.Article) error {
	if strings.TrimSpace(a.Link) == "" {
		return ErrEmptyLink
	}
	_, err := s.UpsertArticles([]model.Article{a})
	return err
}

// QueryArticles returns articles matching every set field of f, newest first.
// Keyword is a case-insensitive substring match on title or summary. Start
// and End are inclusive; End is extended to the end of its day.
// Thread-safe: acquires read lock.
func (s *Store) QueryArticles(f model.ArticleFilter) ([]model.Article, error) {
	var (
		where []string
		args  []any
	)

	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if !f.Category.IsAll() {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if !f.Start.IsZero() {
		where = append(where, "pub_date >= ?")
		args = append(args, toMillis(f.Start))
	}
	if !f.End.IsZero() {
		where = append(where, "pub_date <= ?")
		args = append(args, toMillis(EndOfDay(f.End)))
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := "%" + escapeLike(strings.ToLower(kw)) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(summary) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	limit := f.Limit
	if limit <= 0 || limit > MaxQueryLimit {
		limit = DefaultQueryLimit
	}

	query := `
		SELECT link, title, source, category, summary, original_content,
			image_url, pub_date, saved_at
		FROM articles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY pub_date DESC LIMIT ?"
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := []model.Article{}
	for rows.Next() {
		var (
			a            model.Article
			category     string
			pub, savedAt int64
		)
		err := rows.Scan(
			&a.Link,
			&a.Title,
			&a.Source,
			&category,
			&a.Summary,
			&a.OriginalContent,
			&a.ImageURL,
			&pub,
			&savedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Category = model.Category(category)
		a.PubDate = fromMillis(pub)
		a.SavedAt = fromMillis(savedAt)
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return articles, nil
}

// PurgeOlderThan deletes articles published before cutoff and returns the
// number removed.
// Thread-safe: acquires write lock.
func (s *Store) PurgeOlderThan(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM articles WHERE pub_date < ?", toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge articles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// escapeLike escapes LIKE wildcards so keywords match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
