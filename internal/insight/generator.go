// Package insight turns a batch of articles into an InsightSet: prompt
// construction, a single model call, response parsing, and coverage repair,
// with a deterministic fallback whenever the model cannot be used.
package insight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
)

// Completer is the model client used by Generator.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// availability is implemented by completers that can report being unconfigured.
type availability interface {
	Available() bool
}

const (
	reasonNoModel    = "AI insights unavailable: no model configured"
	reasonModelError = "AI insights unavailable: model request failed"
	reasonParseError = "AI insights unavailable: model response could not be parsed"
	reasonNoArticles = "no articles available"
)

// Generator produces insight sets. It never returns an error: every failure
// degrades to Fallback.
type Generator struct {
	llm Completer
	log *otel.Logger
	now func() time.Time
}

// NewGenerator creates a Generator. llm may be nil.
func NewGenerator(llm Completer, log *otel.Logger) *Generator {
	return &Generator{llm: llm, log: log, now: time.Now}
}

// SetClock replaces the time source.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

// HasModel reports whether a usable model client is configured.
func (g *Generator) HasModel() bool {
	if g.llm == nil {
		return false
	}
	if a, ok := g.llm.(availability); ok {
		return a.Available()
	}
	return true
}

// Generate builds the insight set for category from articles.
func (g *Generator) Generate(ctx context.Context, category model.Category, articles []model.Article) (set model.InsightSet) {
	now := g.now()

	if len(articles) == 0 {
		return model.InsightSet{
			Category:           category,
			RecommendedActions: []model.RecommendedAction{},
			Themes:             []model.Theme{},
			GeneratedAt:        now,
			Success:            false,
			Message:            reasonNoArticles,
		}
	}

	if !g.HasModel() {
		g.fallbackEvent(category, reasonNoModel, nil)
		return Fallback(category, articles, now, reasonNoModel)
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			g.fallbackEvent(category, reasonModelError, err)
			set = Fallback(category, articles, now, reasonModelError)
		}
	}()

	start := time.Now()
	refs := Summaries(articles)

	prompt, err := BuildPrompt(category, refs)
	if err != nil {
		g.fallbackEvent(category, reasonModelError, err)
		return Fallback(category, articles, now, reasonModelError)
	}

	text, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		g.fallbackEvent(category, reasonModelError, err)
		return Fallback(category, articles, now, reasonModelError)
	}

	resp, err := ParseResponse(text)
	if err != nil {
		var pe *ParseError
		stage := ""
		if errors.As(err, &pe) {
			stage = string(pe.Stage)
		}
		g.log.Emit(otel.Event{
			Level:    otel.LevelWarn,
			Kind:     otel.KindParseError,
			Comp:     "insight",
			Category: string(category),
			Err:      err.Error(),
			Extra:    map[string]any{"stage": stage, "response_len": len(text)},
		})
		g.fallbackEvent(category, reasonParseError, err)
		return Fallback(category, articles, now, reasonParseError)
	}

	themes, actions := resp.Resolve(refs)
	themes, missing := repair(themes, coverageRefs(articles))
	if len(missing) > 0 {
		g.log.Emit(otel.Event{
			Level:    otel.LevelInfo,
			Kind:     otel.KindCoverageRepair,
			Comp:     "insight",
			Category: string(category),
			Count:    len(missing),
			Extra:    map[string]any{"sources": missing},
		})
	}

	rangeStart, rangeEnd := dateRange(articles)
	set = model.InsightSet{
		Category:           category,
		RecommendedActions: actions,
		Themes:             themes,
		ArticleCount:       len(articles),
		DateRangeStart:     rangeStart,
		DateRangeEnd:       rangeEnd,
		GeneratedAt:        now,
		Success:            true,
	}

	g.log.Emit(otel.Event{
		Level:    otel.LevelInfo,
		Kind:     otel.KindGenerate,
		Comp:     "insight",
		Category: string(category),
		Count:    len(articles),
		Dur:      time.Since(start),
		Extra:    map[string]any{"themes": len(themes), "actions": len(actions)},
	})
	return set
}

func (g *Generator) fallbackEvent(category model.Category, reason string, err error) {
	e := otel.Event{
		Level:    otel.LevelWarn,
		Kind:     otel.KindFallback,
		Comp:     "insight",
		Category: string(category),
		Msg:      reason,
	}
	if err != nil {
		e.Err = err.Error()
	}
	g.log.Emit(e)
}
