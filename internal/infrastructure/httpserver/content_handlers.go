package httpserver

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) putContent(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.content.Put(c.Request().Context(), c.Param("cache_id"), body, c.QueryParam("reset_on")); err != nil {
		return s.cacheError(c, "content put", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getContent(c echo.Context) error {
	id := c.Param("cache_id")
	data, ok, err := s.content.Get(c.Request().Context(), id)
	if err != nil {
		return s.cacheError(c, "content get", err)
	}
	if !ok {
		return notFound(id)
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, data)
}

type resetOnRequest struct {
	Conditions map[string]string `json:"conditions"`
	UseAnd     bool              `json:"use_and"`
}

func (s *Server) resetContentOn(c echo.Context) error {
	var req resetOnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Conditions) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "conditions must not be empty")
	}
	if err := s.content.ResetOn(c.Request().Context(), req.Conditions, req.UseAnd); err != nil {
		return s.cacheError(c, "content reset on", err)
	}
	return c.NoContent(http.StatusNoContent)
}
