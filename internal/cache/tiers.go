// Package cache decides whether an insight set for a category can be served
// without calling the model. The hot tier (memory or Redis) is consulted
// first, then the archive; a record counts only if it was generated on the
// current calendar day in the reference timezone.
package cache

import (
	"context"
	"time"

	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
)

const (
	// DedupWindow suppresses re-archiving when the latest record is younger.
	DedupWindow = time.Hour

	// FallbackTTL bounds how long a fallback result is served from the hot
	// tier before generation is attempted again.
	FallbackTTL = 10 * time.Minute
)

// Archive is the persistent tier.
type Archive interface {
	LatestInsight(category model.Category) (*model.ArchivedInsight, error)
	SaveInsight(rec model.ArchivedInsight) (model.ArchivedInsight, error)
}

// Tiers combines the hot tier and the archive.
type Tiers struct {
	hot     Hot
	archive Archive
	loc     *time.Location
	now     func() time.Time
	log     *otel.Logger
}

// New creates Tiers over archive with an in-memory hot tier. A nil loc
// means UTC.
func New(archive Archive, loc *time.Location, log *otel.Logger) *Tiers {
	if loc == nil {
		loc = time.UTC
	}
	return &Tiers{
		hot:     NewMemory(),
		archive: archive,
		loc:     loc,
		now:     time.Now,
		log:     log,
	}
}

// SetHot replaces the hot tier.
func (t *Tiers) SetHot(h Hot) {
	t.hot = h
}

// SetClock replaces the time source.
func (t *Tiers) SetClock(now func() time.Time) {
	t.now = now
}

// Location returns the reference timezone.
func (t *Tiers) Location() *time.Location {
	return t.loc
}

// SameDay reports whether a and b fall on the same calendar day in the
// reference timezone.
func (t *Tiers) SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(t.loc).Date()
	by, bm, bd := b.In(t.loc).Date()
	return ay == by && am == bm && ad == bd
}

// Today returns the fresh insight for category, if any.
func (t *Tiers) Today(ctx context.Context, category model.Category) (*model.ArchivedInsight, bool) {
	now := t.now()

	e, ok, err := t.hot.Get(ctx, category)
	if err != nil {
		t.storeError(category, "hot get", err)
	}
	if ok && t.SameDay(e.Insight.GeneratedAt, now) && !(e.Insight.Fallback && now.Sub(e.StoredAt) > FallbackTTL) {
		rec := e.Insight
		t.hit(category, "memory", rec.ID)
		return &rec, true
	}

	rec, err := t.archive.LatestInsight(category)
	if err != nil {
		t.storeError(category, "latest insight", err)
		return nil, false
	}
	if rec != nil && t.SameDay(rec.GeneratedAt, now) {
		if err := t.hot.Put(ctx, category, Entry{Insight: *rec, StoredAt: now}); err != nil {
			t.storeError(category, "hot put", err)
		}
		t.hit(category, "archive", rec.ID)
		return rec, true
	}

	t.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindCacheMiss, Comp: "cache", Category: string(category)})
	return nil, false
}

// Save stores a generated set for category. Unsuccessful sets are not
// cached. The hot tier is always updated; the archive is written unless the
// set is a fallback or the latest archived record is inside DedupWindow.
// archived reports whether a new archive record was written.
func (t *Tiers) Save(ctx context.Context, set model.InsightSet, category model.Category, start, end time.Time) (rec model.ArchivedInsight, archived bool) {
	now := t.now()

	set.Category = category
	if !start.IsZero() {
		set.DateRangeStart = start
	}
	if !end.IsZero() {
		set.DateRangeEnd = end
	}
	if set.GeneratedAt.IsZero() {
		set.GeneratedAt = now
	}
	rec = model.ArchivedInsight{InsightSet: set}

	if !set.Success {
		return rec, false
	}

	if !set.Fallback {
		rec, archived = t.archiveIfDue(category, rec, now)
	}

	if err := t.hot.Put(ctx, category, Entry{Insight: rec, StoredAt: now}); err != nil {
		t.storeError(category, "hot put", err)
	}
	return rec, archived
}

func (t *Tiers) archiveIfDue(category model.Category, rec model.ArchivedInsight, now time.Time) (model.ArchivedInsight, bool) {
	latest, err := t.archive.LatestInsight(category)
	if err != nil {
		t.storeError(category, "latest insight", err)
		return rec, false
	}
	if latest != nil && now.Sub(latest.GeneratedAt) < DedupWindow {
		t.log.Emit(otel.Event{
			Level:    otel.LevelInfo,
			Kind:     otel.KindArchiveSkip,
			Comp:     "cache",
			Category: string(category),
			RecordID: latest.ID,
			Msg:      "latest record inside dedup window",
		})
		return rec, false
	}

	saved, err := t.archive.SaveInsight(rec)
	if err != nil {
		t.storeError(category, "save insight", err)
		return rec, false
	}
	t.log.Emit(otel.Event{
		Level:    otel.LevelInfo,
		Kind:     otel.KindArchive,
		Comp:     "cache",
		Category: string(category),
		RecordID: saved.ID,
		Count:    saved.ArticleCount,
	})
	return saved, true
}

// Clear empties the hot tier. The archive is untouched.
func (t *Tiers) Clear(ctx context.Context) {
	if err := t.hot.Clear(ctx); err != nil {
		t.storeError("", "hot clear", err)
		return
	}
	t.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindCacheClear, Comp: "cache"})
}

func (t *Tiers) hit(category model.Category, tier, id string) {
	t.log.Emit(otel.Event{
		Level:    otel.LevelInfo,
		Kind:     otel.KindCacheHit,
		Comp:     "cache",
		Category: string(category),
		RecordID: id,
		Msg:      tier,
	})
}

func (t *Tiers) storeError(category model.Category, op string, err error) {
	t.log.Emit(otel.Event{
		Level:    otel.LevelError,
		Kind:     otel.KindStoreError,
		Comp:     "cache",
		Category: string(category),
		Msg:      op,
		Err:      err.Error(),
	})
}
