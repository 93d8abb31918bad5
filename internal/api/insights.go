package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/pulse/internal/model"
)

func registerInsightRoutes(g *gin.RouterGroup, s *server) {
	g.GET("/insights/:category", s.handleInsights)
	g.POST("/insights/:category/regenerate", s.handleRegenerate)
}

func (s *server) handleInsights(c *gin.Context) {
	cat, ok := insightCategory(c)
	if !ok {
		return
	}
	rec, err := s.Insights.Insights(c.Request.Context(), cat)
	if err != nil {
		insightError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) handleRegenerate(c *gin.Context) {
	cat, ok := insightCategory(c)
	if !ok {
		return
	}
	rec, err := s.Insights.Regenerate(c.Request.Context(), cat)
	if err != nil {
		insightError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// insightCategory requires a concrete category in the path.
func insightCategory(c *gin.Context) (model.Category, bool) {
	cat, err := model.ParseCategory(c.Param("category"))
	if err == nil && cat.IsAll() {
		err = errors.New("insights need a single category")
	}
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return cat, true
}

func insightError(c *gin.Context, err error) {
	if errors.Is(err, model.ErrUnknownCategory) {
		badRequest(c, err)
		return
	}
	c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
