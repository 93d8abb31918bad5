package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/pulse/internal/model"
)

func registerArchiveRoutes(g *gin.RouterGroup, s *server) {
	g.GET("/archive", s.handleArchiveBrowse)
	g.GET("/archive/search", s.handleArchiveSearch)
	g.GET("/archive/:id", s.handleArchiveGet)
}

func (s *server) handleArchiveBrowse(c *gin.Context) {
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

	recs := s.Archive.Browse(model.ArchiveFilter{Category: cat, Start: start, End: end, Limit: limit})
	c.JSON(http.StatusOK, gin.H{"insights": recs, "count": len(recs)})
}

func (s *server) handleArchiveSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	cat, ok := categoryParam(c, c.Query("category"))
	if !ok {
		return
	}
	recs := s.Archive.Search(q, cat)
	c.JSON(http.StatusOK, gin.H{"insights": recs, "count": len(recs), "query": q})
}

func (s *server) handleArchiveGet(c *gin.Context) {
	rec := s.Archive.Get(c.Param("id"))
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "insight not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
