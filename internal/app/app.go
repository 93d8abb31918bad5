// Package app assembles pulse's components from a Config. Both the server
// and the obs CLI build on it.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/pulse/internal/api"
	"github.com/abelbrown/pulse/internal/archive"
	"github.com/abelbrown/pulse/internal/brain"
	"github.com/abelbrown/pulse/internal/cache"
	"github.com/abelbrown/pulse/internal/config"
	"github.com/abelbrown/pulse/internal/coord"
	"github.com/abelbrown/pulse/internal/export"
	"github.com/abelbrown/pulse/internal/fetch"
	"github.com/abelbrown/pulse/internal/insight"
	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
	"github.com/abelbrown/pulse/internal/store"
)

const (
	fetchTimeout   = 30 * time.Second
	ringBufferSize = 1000
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Location *time.Location
	Log      *otel.Logger
	Store    *store.Store
	Sources  []model.Source
	Fetcher  *fetch.Fetcher
	Models   *brain.Chain
	Tiers    *cache.Tiers
	Insights *insight.Service
	Archive  *archive.Archive
	Coord    *coord.Coordinator

	redis *cache.RedisTier
}

// Open builds an App. An unreachable Redis falls back to the in-process hot
// tier; every other failure is returned.
func Open(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a.Location = loc

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	a.Log, err = otel.OpenDaily(cfg.LogDir())
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	a.Log.SetRingBuffer(otel.NewRingBuffer(ringBufferSize))

	a.Store, err = store.Open(cfg.DBPath())
	if err != nil {
		a.Log.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store.SetLimits(cfg.StoreLimits())

	a.Sources = fetch.DefaultSources()
	if cfg.SourcesFile != "" {
		if a.Sources, err = config.LoadSources(cfg.SourcesFile); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Fetcher = fetch.NewFetcher(a.Sources, fetchTimeout, a.Log)

	a.Models, err = brain.NewChainFromSpecs(cfg.ProviderSpecs(), cfg.LLM.Preferred, cfg.LLMMinInterval(), cfg.LLMTimeout())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("model providers: %w", err)
	}
	a.Models.SetLogger(a.Log)

	a.Tiers = cache.New(a.Store, loc, a.Log)
	if cfg.Redis.Addr != "" {
		rt, err := cache.NewRedisTier(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Log.Emit(otel.Event{
				Level: otel.LevelWarn,
				Kind:  otel.KindError,
				Comp:  "main",
				Err:   err.Error(),
				Msg:   "redis unavailable, using in-process cache",
			})
		} else {
			a.redis = rt
			a.Tiers.SetHot(rt)
		}
	}

	gen := insight.NewGenerator(a.Models, a.Log)
	a.Insights = insight.NewService(gen, a.Tiers, a.Store, a.Log)
	a.Archive = archive.New(a.Store, a.Log)
	a.Coord = coord.New(a.Store, a.Fetcher, a.Insights, a.Tiers, a.Log, coord.Options{
		FetchInterval:    cfg.FetchEvery(),
		GenerateInterval: cfg.GenerateEvery(),
		Retention:        cfg.Retention(),
	})
	return a, nil
}

// Router returns the HTTP API.
func (a *App) Router() *gin.Engine {
	return api.NewRouter(api.Deps{
		Insights:  a.Insights,
		Archive:   a.Archive,
		Refresher: a.Coord,
		Sources:   a.Sources,
		Log:       a.Log,
		Location:  a.Location,
	})
}

// Exporter builds the S3 exporter from the export settings.
func (a *App) Exporter(ctx context.Context) (*export.Exporter, error) {
	e := a.Config.Export
	return export.NewS3(ctx, e.Bucket, e.Prefix, e.Region, a.Location, a.Log)
}

// Close releases everything Open acquired. Safe on a partially built App.
func (a *App) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Log != nil {
		a.Log.Close()
	}
}
