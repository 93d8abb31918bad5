// Package api exposes pulse over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/pulse/internal/archive"
	"github.com/abelbrown/pulse/internal/insight"
	"github.com/abelbrown/pulse/internal/model"
	"github.com/abelbrown/pulse/internal/otel"
)

// Refresher triggers an immediate fetch.
type Refresher interface {
	Refresh(ctx context.Context) (fetched, added int, err error)
}

// Deps are the components the API serves from. Refresher and Log may be nil.
type Deps struct {
	Insights  *insight.Service
	Archive   *archive.Archive
	Refresher Refresher
	Sources   []model.Source
	Log       *otel.Logger
	Location  *time.Location // dates in query strings are read in this zone
}

type server struct {
	Deps
	started time.Time
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Location == nil {
		d.Location = time.UTC
	}
	s := &server{Deps: d, started: time.Now()}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestEvents())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/sources", s.handleSources)
	api.GET("/articles", s.handleArticles)
	api.POST("/refresh", s.handleRefresh)
	api.GET("/events", s.handleEvents)
	registerInsightRoutes(api, s)
	registerArchiveRoutes(api, s)
	return r
}

// requestEvents emits one api.request event per request.
func (s *server) requestEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		e := otel.Event{
			Level: otel.LevelInfo,
			Kind:  otel.KindAPIRequest,
			Comp:  "api",
			Dur:   time.Since(start),
			Msg:   c.Request.Method + " " + c.FullPath(),
			Extra: map[string]any{"status": status},
		}
		if status >= http.StatusInternalServerError {
			e.Level = otel.LevelError
			e.Kind = otel.KindAPIError
		}
		if len(c.Errors) > 0 {
			e.Err = c.Errors.String()
		}
		s.Log.Emit(e)
	}
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"llm":     s.Insights.HasModel(),
		"sources": len(s.Sources),
	})
}

func (s *server) handleSources(c *gin.Context) {
	cat, ok := categoryParam(c, c.Query("category"))
	if !ok {
		return
	}
	out := []model.Source{}
	for _, src := range s.Sources {
		if cat.IsAll() || src.Category == cat {
			out = append(out, src)
		}
	}
	c.JSON(http.StatusOK, gin.H{"sources": out, "count": len(out)})
}

func (s *server) handleArticles(c *gin.Context) {
	cat, ok := categoryParam(c, c.Query("category"))
	if !ok {
		return
	}
	start, ok := s.dateParam(c, "start")
	if !ok {
		return
	}
	end, ok := s.dateParam(c, "end")
	if !ok {
		return
	}
	limit, ok := intParam(c, "limit")
	if !ok {
		return
	}

	f := model.ArticleFilter{
		Source:   strings.TrimSpace(c.Query("source")),
		Category: cat,
		Start:    start,
		End:      end,
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Limit:    limit,
	}
	articles := s.Insights.Articles(c.Request.Context(), f)
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

func (s *server) handleRefresh(c *gin.Context) {
	if s.Refresher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "refresh not available"})
		return
	}
	fetched, added, err := s.Refresher.Refresh(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fetched": fetched, "added": added})
}

const defaultEventCount = 100

func (s *server) handleEvents(c *gin.Context) {
	n, ok := intParam(c, "n")
	if !ok {
		return
	}
	if n <= 0 {
		n = defaultEventCount
	}
	level, err := otel.ParseLevel(c.Query("level"))
	if err != nil {
		badRequest(c, err)
		return
	}
	rb := s.Log.RingBuffer()
	if rb == nil {
		c.JSON(http.StatusOK, gin.H{"events": []otel.Event{}, "count": 0})
		return
	}
	events := append([]otel.Event{}, rb.Recent(otel.Filter{
		Kind:     c.Query("kind"),
		Category: c.Query("category"),
		Comp:     c.Query("comp"),
		MinLevel: level,
		Limit:    n,
	})...)
	c.JSON(http.StatusOK, gin.H{
		"events":   events,
		"count":    len(events),
		"buffered": rb.Len(),
		"capacity": rb.Cap(),
		"total":    rb.Total(),
		"kinds":    rb.Counts(),
	})
}

// categoryParam parses an optional category; blank means all. Writes a 400
// and returns false when invalid.
func categoryParam(c *gin.Context, raw string) (model.Category, bool) {
	if strings.TrimSpace(raw) == "" {
		return model.CategoryAll, true
	}
	cat, err := model.ParseCategory(raw)
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return cat, true
}

// dateParam parses a YYYY-MM-DD query value in the server's location.
func (s *server) dateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, s.Location)
	if err != nil {
		badRequest(c, errors.New("invalid "+name+": want YYYY-MM-DD"))
		return time.Time{}, false
	}
	return t, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, errors.New("invalid "+name))
		return 0, false
	}
	return n, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
