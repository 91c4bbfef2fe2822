package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
)

// cacheError translates a cache failure into an HTTP error.
func (s *Server) cacheError(c echo.Context, op string, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, cache.ErrInvalidMode), errors.Is(err, cache.ErrInvalidTag):
		code = http.StatusBadRequest
	case errors.Is(err, cache.ErrUnsupportedOperation):
		code = http.StatusNotImplemented
	case errors.Is(err, cache.ErrConnection):
		code = http.StatusServiceUnavailable
	}
	if code >= http.StatusInternalServerError {
		s.logger.WithField("operation", op).WithField("path", c.Path()).WithError(err).Error("cache operation failed")
		return echo.NewHTTPError(code, http.StatusText(code))
	}
	return echo.NewHTTPError(code, err.Error())
}

func notFound(id string) error {
	return echo.NewHTTPError(http.StatusNotFound, "entry "+id+" not found")
}
