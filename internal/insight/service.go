package insight

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/abelbrown/pulse/internal/cache"
	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
)

const (
	// DefaultWindow is how far back articles are considered for generation.
	DefaultWindow = 7 * 24 * time.Hour

	// generationArticleLimit is the store query cap used for generation.
	generationArticleLimit = 100
)

// ArticleStore is the article query surface the service reads from.
type ArticleStore interface {
	QueryArticles(f model.ArticleFilter) ([]model.Article, error)
}

// Service serves insight sets per category: cache first, then generation.
// Concurrent misses for one category share a single generation.
type Service struct {
	gen      *Generator
	tiers    *cache.Tiers
	articles ArticleStore
	log      *otel.Logger
	group    singleflight.Group
	now      func() time.Time
	window   time.Duration
}

// NewService wires a Service.
func NewService(gen *Generator, tiers *cache.Tiers, articles ArticleStore, log *otel.Logger) *Service {
	return &Service{
		gen:      gen,
		tiers:    tiers,
		articles: articles,
		log:      log,
		now:      time.Now,
		window:   DefaultWindow,
	}
}

// SetClock replaces the time source used for the article window.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetWindow sets how far back articles are loaded for generation.
func (s *Service) SetWindow(d time.Duration) {
	if d > 0 {
		s.window = d
	}
}

// HasModel reports whether generation can use a model.
func (s *Service) HasModel() bool {
	return s.gen.HasModel()
}

func concrete(category model.Category) error {
	if category.IsAll() {
		return fmt.Errorf("%w: insights need a single category", model.ErrUnknownCategory)
	}
	if _, err := model.ParseCategory(string(category)); err != nil {
		return err
	}
	return nil
}

// Insights returns today's insight set for category, generating one on a
// cache miss.
func (s *Service) Insights(ctx context.Context, category model.Category) (model.ArchivedInsight, error) {
	if err := concrete(category); err != nil {
		return model.ArchivedInsight{}, err
	}
	if rec, ok := s.tiers.Today(ctx, category); ok {
		return *rec, nil
	}
	return s.shared(ctx, category, true)
}

// Regenerate generates a new set for category regardless of the cache.
func (s *Service) Regenerate(ctx context.Context, category model.Category) (model.ArchivedInsight, error) {
	if err := concrete(category); err != nil {
		return model.ArchivedInsight{}, err
	}
	return s.shared(ctx, category, false)
}

// WarmAll makes sure every category has a set for today, generating only
// where the cache has none. Results are in model.Categories() order.
func (s *Service) WarmAll(ctx context.Context) ([]model.ArchivedInsight, error) {
	return s.forEach(ctx, s.Insights)
}

// RegenerateAll regenerates every category regardless of the cache.
func (s *Service) RegenerateAll(ctx context.Context) ([]model.ArchivedInsight, error) {
	return s.forEach(ctx, s.Regenerate)
}

func (s *Service) forEach(ctx context.Context, fn func(context.Context, model.Category) (model.ArchivedInsight, error)) ([]model.ArchivedInsight, error) {
	cats := model.Categories()
	out := make([]model.ArchivedInsight, len(cats))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range cats {
		g.Go(func() error {
			rec, err := fn(gctx, c)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

// shared runs generation for category at most once at a time. When
// checkCache is set the cache is consulted again inside the flight, so a
// caller that queued behind a finished generation reuses its result.
func (s *Service) shared(ctx context.Context, category model.Category, checkCache bool) (model.ArchivedInsight, error) {
	key := string(category)
	if !checkCache {
		key += "#regenerate"
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		// Waiters share this result, so one caller's cancellation must not abort it.
		fctx := context.WithoutCancel(ctx)
		if checkCache {
			if rec, ok := s.tiers.Today(fctx, category); ok {
				return *rec, nil
			}
		}
		return s.generate(fctx, category), nil
	})
	if err != nil {
		return model.ArchivedInsight{}, err
	}
	return v.(model.ArchivedInsight), nil
}

func (s *Service) generate(ctx context.Context, category model.Category) model.ArchivedInsight {
	now := s.now()
	start := now.Add(-s.window)

	articles := s.Articles(ctx, model.ArticleFilter{
		Category: category,
		Start:    start,
		End:      now,
		Limit:    generationArticleLimit,
	})

	set := s.gen.Generate(ctx, category, articles)
	rec, _ := s.tiers.Save(ctx, set, category, start, now)
	return rec
}

// Articles queries the store, degrading to an empty result on failure.
func (s *Service) Articles(ctx context.Context, f model.ArticleFilter) []model.Article {
	articles, err := s.articles.QueryArticles(f)
	if err != nil {
		s.log.Emit(otel.Event{
			Level:    otel.LevelError,
			Kind:     otel.KindStoreError,
			Comp:     "insight",
			Category: string(f.Category),
			Msg:      "query articles",
			Err:      err.Error(),
		})
		return []model.Article{}
	}
	return articles
}
