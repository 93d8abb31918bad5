package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/abelbrown/pulse/internal/model"
)

// Archive listing caps.
const (
	DefaultArchiveLimit = 50
	MaxArchiveLimit     = 500
)

// ErrFallbackInsight is returned when a fallback set is offered to the
// archive; only model-generated sets are kept.
var ErrFallbackInsight = errors.New("fallback insights are not archived")

// SaveInsight appends rec to the archive. An empty ID is replaced with a
// fresh UUID. The stored record is returned.
// Thread-safe: acquires write lock.
func (s *Store) SaveInsight(rec model.ArchivedInsight) (model.ArchivedInsight, error) {
	if rec.Fallback {
		return rec, ErrFallbackInsight
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	actions := rec.RecommendedActions
	if actions == nil {
		actions = []model.RecommendedAction{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return rec, fmt.Errorf("marshal actions: %w", err)
	}
	themes := rec.Themes
	if themes == nil {
		themes = []model.Theme{}
	}
	themesJSON, err := json.Marshal(themes)
	if err != nil {
		return rec, fmt.Errorf("marshal themes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO insights (
			id, category, recommended_actions, themes, article_count,
			date_range_start, date_range_end, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		string(rec.Category),
		string(actionsJSON),
		string(themesJSON),
		rec.ArticleCount,
		toMillis(rec.DateRangeStart),
		toMillis(rec.DateRangeEnd),
		toMillis(rec.GeneratedAt),
	)
	if err != nil {
		return rec, fmt.Errorf("insert insight: %w", err)
	}
	return rec, nil
}

// LatestInsight returns the most recently generated record for category,
// or nil if there is none.
// Thread-safe: acquires read lock.
func (s *Store) LatestInsight(category model.Category) (*model.ArchivedInsight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(insightColumns+`
		FROM insights
		WHERE category = ?
		ORDER BY generated_at DESC
		LIMIT 1
	`, string(category))
	return scanInsightRow(row)
}

// GetInsight returns the record with the given id, or nil if there is none.
// Thread-safe: acquires read lock.
func (s *Store) GetInsight(id string) (*model.ArchivedInsight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(insightColumns+" FROM insights WHERE id = ?", id)
	return scanInsightRow(row)
}

// ListInsights returns archived records matching f, newest first.
// End is extended to the end of its day.
// Thread-safe: acquires read lock.
func (s *Store) ListInsights(f model.ArchiveFilter) ([]model.ArchivedInsight, error) {
	var (
		where []string
		args  []any
	)
	if !f.Category.IsAll() {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if !f.Start.IsZero() {
		where = append(where, "generated_at >= ?")
		args = append(args, toMillis(f.Start))
	}
	if !f.End.IsZero() {
		where = append(where, "generated_at <= ?")
		args = append(args, toMillis(EndOfDay(f.End)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultArchiveLimit
	}
	if limit > MaxArchiveLimit {
		limit = MaxArchiveLimit
	}

	query := insightColumns + " FROM insights"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY generated_at DESC LIMIT ?"
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	records := []model.ArchivedInsight{}
	for rows.Next() {
		rec, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

const insightColumns = `
	SELECT id, category, recommended_actions, themes, article_count,
		date_range_start, date_range_end, generated_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInsightRow(row *sql.Row) (*model.ArchivedInsight, error) {
	rec, err := scanInsight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanInsight(sc scanner) (model.ArchivedInsight, error) {
	var (
		rec                     model.ArchivedInsight
		category                string
		actionsJSON, themesJSON string
		start, end              sql.NullInt64
		generated               int64
	)
	err := sc.Scan(
		&rec.ID,
		&category,
		&actionsJSON,
		&themesJSON,
		&rec.ArticleCount,
		&start,
		&end,
		&generated,
	)
	if err != nil {
		return rec, err
	}

	rec.Category = model.Category(category)
	rec.DateRangeStart = fromMillis(start.Int64)
	rec.DateRangeEnd = fromMillis(end.Int64)
	rec.GeneratedAt = fromMillis(generated)
	rec.Success = true

	if err := json.Unmarshal([]byte(actionsJSON), &rec.RecommendedActions); err != nil {
		return rec, fmt.Errorf("decode actions for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(themesJSON), &rec.Themes); err != nil {
		return rec, fmt.Errorf("decode themes for %s: %w", rec.ID, err)
	}
	return rec, nil
}
