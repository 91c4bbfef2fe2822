package httpserver

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
	"github.com/avatarctic/tagcache/go/internal/infrastructure/httpserver/helpers"
)

const headerMTime = "X-Cache-Mtime"

// saveEntry stores the request body. ttl is in seconds: absent selects the
// default lifetime and 0 stores without expiry.
func (s *Server) saveEntry(c echo.Context) error {
	id := c.Param("id")
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ttl, given, err := helpers.GetSecondsFromQuery(c, "ttl")
	if err != nil {
		return err
	}
	lifetime := cache.LifetimeDefault
	if given {
		lifetime = cache.For(ttl)
	}
	if err := s.cache.Save(c.Request().Context(), payload, id, helpers.GetTagsFromQuery(c), lifetime); err != nil {
		return s.cacheError(c, "save", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) loadEntry(c echo.Context) error {
	id := c.Param("id")
	skip, _ := strconv.ParseBool(c.QueryParam("skip_validity"))
	data, ok, err := s.cache.Load(c.Request().Context(), id, skip)
	if err != nil {
		return s.cacheError(c, "load", err)
	}
	if !ok {
		return notFound(id)
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, data)
}

func (s *Server) testEntry(c echo.Context) error {
	mtime, ok, err := s.cache.Test(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.cacheError(c, "test", err)
	}
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	c.Response().Header().Set(headerMTime, strconv.FormatInt(mtime, 10))
	return c.NoContent(http.StatusOK)
}

func (s *Server) removeEntry(c echo.Context) error {
	id := c.Param("id")
	removed, err := s.cache.Remove(c.Request().Context(), id)
	if err != nil {
		return s.cacheError(c, "remove", err)
	}
	if !removed {
		return notFound(id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) entryMetadata(c echo.Context) error {
	id := c.Param("id")
	md, ok, err := s.cache.GetMetadata(c.Request().Context(), id)
	if err != nil {
		return s.cacheError(c, "metadata", err)
	}
	if !ok {
		return notFound(id)
	}
	return c.JSON(http.StatusOK, md)
}

func (s *Server) touchEntry(c echo.Context) error {
	id := c.Param("id")
	extra, given, err := helpers.GetSecondsFromQuery(c, "extra")
	if err != nil {
		return err
	}
	if !given || extra == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "extra must be a positive number of seconds")
	}
	ctx := c.Request().Context()
	ok, err := s.cache.Touch(ctx, id, extra)
	if err != nil {
		return s.cacheError(c, "touch", err)
	}
	if !ok {
		// infinite records exist but have no TTL to extend
		_, exists, err := s.cache.Test(ctx, id)
		if err != nil {
			return s.cacheError(c, "touch", err)
		}
		if !exists {
			return notFound(id)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"id": id, "touched": false})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"id": id, "touched": true, "extended_by": extra / time.Second})
}
