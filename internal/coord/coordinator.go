// Package coord runs pulse's background work: periodic feed fetches,
// retention purges, and proactive insight generation.
package coord

import (
	"context"
	"sync"
	"time"

	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
	"github.com/abelbrown/pulse/internal/store"
)

// Defaults for zero Options fields.
const (
	DefaultFetchInterval    = 5 * time.Minute
	DefaultGenerateInterval = time.Hour
	DefaultPurgeInterval    = 24 * time.Hour
	DefaultRetention        = 90 * 24 * time.Hour
)

// articleSource is the fetch surface (injectable for testing).
type articleSource interface {
	FetchAll(ctx context.Context) ([]model.Article, error)
}

// generator makes sure every category has today's insights, calling the
// model only where the cache has none.
type generator interface {
	WarmAll(ctx context.Context) ([]model.ArchivedInsight, error)
}

// clearer drops cached insights after new articles arrive.
type clearer interface {
	Clear(ctx context.Context)
}

// Options configures the background intervals.
type Options struct {
	FetchInterval    time.Duration
	GenerateInterval time.Duration // zero disables proactive generation
	PurgeInterval    time.Duration
	Retention        time.Duration
}

// Coordinator manages background fetching, purging and generation.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	store  *store.Store
	source articleSource
	gen    generator // optional
	cache  clearer   // optional
	log    *otel.Logger
	opts   Options
	now    func() time.Time

	fetchMu sync.Mutex // one fetch cycle at a time
	wg      sync.WaitGroup
}

// New creates a Coordinator. gen and cache may be nil.
func New(s *store.Store, src articleSource, gen generator, cache clearer, log *otel.Logger, opts Options) *Coordinator {
	if opts.FetchInterval <= 0 {
		opts.FetchInterval = DefaultFetchInterval
	}
	if opts.PurgeInterval <= 0 {
		opts.PurgeInterval = DefaultPurgeInterval
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &Coordinator{
		store:  s,
		source: src,
		gen:    gen,
		cache:  cache,
		log:    log,
		opts:   opts,
		now:    time.Now,
	}
}

// Start begins background work. Call with a cancellable context.
// Performs an initial fetch and purge immediately.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.FetchOnce(ctx)
		c.Purge()

		fetchTicker := time.NewTicker(c.opts.FetchInterval)
		defer fetchTicker.Stop()
		purgeTicker := time.NewTicker(c.opts.PurgeInterval)
		defer purgeTicker.Stop()

		var genC <-chan time.Time
		if c.gen != nil && c.opts.GenerateInterval > 0 {
			genTicker := time.NewTicker(c.opts.GenerateInterval)
			defer genTicker.Stop()
			genC = genTicker.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-fetchTicker.C:
				c.FetchOnce(ctx)
			case <-purgeTicker.C:
				c.Purge()
			case <-genC:
				c.WarmAll(ctx)
			}
		}
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// FetchOnce fetches every source and upserts the results. Returns the
// number of articles fetched and how many were new.
func (c *Coordinator) FetchOnce(ctx context.Context) (fetched, added int, err error) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	start := time.Now()
	c.log.Info(otel.KindFetchStart, "coord", "fetch cycle")

	articles, err := c.source.FetchAll(ctx)
	if err != nil {
		c.log.Error(otel.KindFetchError, "coord", err)
		return 0, 0, err
	}
	if len(articles) == 0 {
		c.log.Warn(otel.KindFetchComplete, "coord", "no articles from any source")
		return 0, 0, nil
	}

	added, err = c.store.UpsertArticles(articles)
	if err != nil {
		c.log.Error(otel.KindStoreError, "coord", err)
		return len(articles), 0, err
	}

	c.log.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindFetchComplete,
		Comp:  "coord",
		Count: added,
		Dur:   time.Since(start),
		Extra: map[string]any{"fetched": len(articles)},
	})
	return len(articles), added, nil
}

// Refresh fetches immediately and then clears the hot insight tier so the
// next request sees the new articles.
func (c *Coordinator) Refresh(ctx context.Context) (fetched, added int, err error) {
	fetched, added, err = c.FetchOnce(ctx)
	if err != nil {
		return fetched, added, err
	}
	if c.cache != nil {
		c.cache.Clear(ctx)
	}
	return fetched, added, nil
}

// Purge deletes articles published before the retention cutoff.
func (c *Coordinator) Purge() (int, error) {
	cutoff := c.now().Add(-c.opts.Retention)
	n, err := c.store.PurgeOlderThan(cutoff)
	if err != nil {
		c.log.Error(otel.KindStoreError, "coord", err)
		return 0, err
	}
	c.log.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindStorePurge,
		Comp:  "coord",
		Count: n,
		Msg:   "before " + cutoff.Format(time.DateOnly),
	})
	return n, nil
}

// WarmAll runs proactive generation for every category without a set
// for today.
func (c *Coordinator) WarmAll(ctx context.Context) {
	if c.gen == nil {
		return
	}
	if _, err := c.gen.WarmAll(ctx); err != nil && ctx.Err() == nil {
		c.log.Error(otel.KindError, "coord", err)
	}
}
