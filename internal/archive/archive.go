// Package archive is the read-only view over archived insight records used
// by the API, the CLI and the browser. Storage failures are logged and read
// as empty results.
package archive

import (
	"strings"

	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
	"github.com/abelbrown/pulse/internal/store"
)

// Store is the archive persistence surface.
type Store interface {
	ListInsights(f model.ArchiveFilter) ([]model.ArchivedInsight, error)
	GetInsight(id string) (*model.ArchivedInsight, error)
}

// Archive queries archived insight records.
type Archive struct {
	st  Store
	log *otel.Logger
}

// New creates an Archive over st.
func New(st Store, log *otel.Logger) *Archive {
	return &Archive{st: st, log: log}
}

// Browse lists records newest first. A zero Limit means
// store.DefaultArchiveLimit.
func (a *Archive) Browse(f model.ArchiveFilter) []model.ArchivedInsight {
	if f.Limit <= 0 {
		f.Limit = store.DefaultArchiveLimit
	}
	recs, err := a.st.ListInsights(f)
	if err != nil {
		a.storeError("list insights", err)
		return []model.ArchivedInsight{}
	}
	return recs
}

// Get returns the record with id, or nil if there is none.
func (a *Archive) Get(id string) *model.ArchivedInsight {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	rec, err := a.st.GetInsight(id)
	if err != nil {
		a.storeError("get insight", err)
		return nil
	}
	return rec
}

// Search returns records, newest first, whose theme names, insight text or
// action text contain keyword, case-insensitively. A blank keyword matches
// nothing.
func (a *Archive) Search(keyword string, category model.Category) []model.ArchivedInsight {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return []model.ArchivedInsight{}
	}

	recs, err := a.st.ListInsights(model.ArchiveFilter{Category: category, Limit: store.MaxArchiveLimit})
	if err != nil {
		a.storeError("search insights", err)
		return []model.ArchivedInsight{}
	}

	out := []model.ArchivedInsight{}
	for _, rec := range recs {
		if matches(rec.InsightSet, kw) {
			out = append(out, rec)
		}
	}
	return out
}

// Matches reports whether set contains keyword in any searchable text.
func Matches(set model.InsightSet, keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return true
	}
	return matches(set, kw)
}

// matches expects kw already lowercased.
func matches(set model.InsightSet, kw string) bool {
	has := func(s string) bool { return strings.Contains(strings.ToLower(s), kw) }

	for _, ra := range set.RecommendedActions {
		if has(ra.Action) {
			return true
		}
	}
	for _, th := range set.Themes {
		if has(th.Name) {
			return true
		}
		for _, in := range th.Insights {
			if has(in.Text) {
				return true
			}
		}
		for _, ac := range th.Actions {
			if has(ac.Action) {
				return true
			}
		}
	}
	return false
}

func (a *Archive) storeError(op string, err error) {
	a.log.Emit(otel.Event{
		Level: otel.LevelError,
		Kind:  otel.KindStoreError,
		Comp:  "archive",
		Msg:   op,
		Err:   err.Error(),
	})
}
