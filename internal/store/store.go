// Package store provides SQLite persistence for pulse: fetched articles and
// the archive of generated insight sets.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Default content caps, in runes. Feeds occasionally ship entire articles in
// the description; these keep rows bounded.
const (
	DefaultTitleLimit   = 500
	DefaultSummaryLimit = 1000
	DefaultContentLimit = 5000
)

// Limits caps the size of stored article text fields.
type Limits struct {
	Title   int
	Summary int
	Content int
}

// DefaultLimits returns the default content caps.
func DefaultLimits() Limits {
	return Limits{
		Title:   DefaultTitleLimit,
		Summary: DefaultSummaryLimit,
		Content: DefaultContentLimit,
	}
}

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex // Protects all database operations
	limits Limits
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is its own database, so pin the pool
	// to one connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	s := &Store{db: db, limits: DefaultLimits()}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// SetLimits overrides the content caps applied on upsert.
// Zero fields keep their current value.
func (s *Store) SetLimits(l Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Title > 0 {
		s.limits.Title = l.Title
	}
	if l.Summary > 0 {
		s.limits.Summary = l.Summary
	}
	if l.Content > 0 {
		s.limits.Content = l.Content
	}
}

// createTables creates the required tables and indexes if they don't exist.
// Timestamps are stored as unix milliseconds so range filters compare numerically.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		link TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source TEXT NOT NULL,
		category TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		original_content TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		pub_date INTEGER NOT NULL,
		saved_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date DESC);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
	CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category, pub_date DESC);

	CREATE TABLE IF NOT EXISTS insights (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		recommended_actions TEXT NOT NULL DEFAULT '[]',
		themes TEXT NOT NULL DEFAULT '[]',
		article_count INTEGER NOT NULL DEFAULT 0,
		date_range_start INTEGER,
		date_range_end INTEGER,
		generated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_insights_category ON insights(category, generated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_insights_generated ON insights(generated_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Stats summarizes store contents for the CLI.
type Stats struct {
	Articles      int
	Insights      int
	BySource      map[string]int
	ByCategory    map[string]int
	OldestArticle time.Time
	NewestArticle time.Time
}

// Stats returns row counts and the article date span.
// Thread-safe: acquires read lock.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		BySource:   make(map[string]int),
		ByCategory: make(map[string]int),
	}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRow("SELECT COUNT(*), MIN(pub_date), MAX(pub_date) FROM articles").
		Scan(&st.Articles, &oldest, &newest)
	if err != nil {
		return st, fmt.Errorf("count articles: %w", err)
	}
	if oldest.Valid {
		st.OldestArticle = fromMillis(oldest.Int64)
	}
	if newest.Valid {
		st.NewestArticle = fromMillis(newest.Int64)
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM insights").Scan(&st.Insights); err != nil {
		return st, fmt.Errorf("count insights: %w", err)
	}

	if err := s.countBy("source", st.BySource); err != nil {
		return st, err
	}
	if err := s.countBy("category", st.ByCategory); err != nil {
		return st, err
	}
	return st, nil
}

// countBy fills dst with article counts grouped by column.
// Caller must hold s.mu. column is never user input.
func (s *Store) countBy(column string, dst map[string]int) error {
	rows, err := s.db.Query("SELECT " + column + ", COUNT(*) FROM articles GROUP BY " + column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[key] = n
	}
	return rows.Err()
}

// toMillis converts t to unix milliseconds. The zero time maps to 0.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// fromMillis is the inverse of toMillis. Times come back in UTC.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// truncate shortens s to maxLen runes. Uses rune-aware slicing to avoid
// breaking UTF-8 characters.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// EndOfDay returns the last nanosecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
