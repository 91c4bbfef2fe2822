package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tagcache/go/internal/infrastructure/httpserver/helpers"
)

// listIds lists stored ids, optionally filtered by tags. match selects the
// combination: all (default when tags are given), any or none.
func (s *Server) listIds(c echo.Context) error {
	ctx := c.Request().Context()
	tags := helpers.GetTagsFromQuery(c)
	match := c.QueryParam("match")

	var (
		ids []string
		err error
	)
	switch {
	case match == "none":
		ids, err = s.cache.GetIdsNotMatchingTags(ctx, tags)
	case len(tags) == 0 && match == "":
		ids, err = s.cache.GetIds(ctx)
	case match == "" || match == "all":
		ids, err = s.cache.GetIdsMatchingTags(ctx, tags)
	case match == "any":
		ids, err = s.cache.GetIdsMatchingAnyTags(ctx, tags)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "match must be one of all, any, none")
	}
	if err != nil {
		return s.cacheError(c, "list ids", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ids": ids, "total": len(ids)})
}

func (s *Server) listTags(c echo.Context) error {
	tags, err := s.cache.GetTags(c.Request().Context())
	if err != nil {
		return s.cacheError(c, "list tags", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tags": tags, "total": len(tags)})
}

func (s *Server) capabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cache.GetCapabilities())
}

func (s *Server) fillingPercentage(c echo.Context) error {
	pct, err := s.cache.GetFillingPercentage(c.Request().Context())
	if err != nil {
		return s.cacheError(c, "filling", err)
	}
	return c.JSON(http.StatusOK, map[string]int{"filling_percentage": pct})
}
