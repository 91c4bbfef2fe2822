package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tagcache/go/internal/core/domain/cache"
	"github.com/avatarctic/tagcache/go/internal/infrastructure/httpserver/helpers"
)

type cleanRequest struct {
	Mode string   `json:"mode"`
	Tags []string `json:"tags"`
}

func (s *Server) clean(c echo.Context) error {
	var req cleanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	mode, err := cache.ParseCleanMode(req.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.cache.Clean(c.Request().Context(), mode, req.Tags); err != nil {
		return s.cacheError(c, "clean", err)
	}
	s.auditAdmin(c, "clean", logrus.Fields{"mode": mode, "tags": req.Tags})
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) flush(c echo.Context) error {
	if err := s.cache.Flush(c.Request().Context()); err != nil {
		return s.cacheError(c, "flush", err)
	}
	s.auditAdmin(c, "flush", nil)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) collectGarbage(c echo.Context) error {
	stats, err := s.cache.CollectGarbage(c.Request().Context())
	if err != nil {
		return s.cacheError(c, "gc", err)
	}
	s.auditAdmin(c, "gc", nil)
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) resetContent(c echo.Context) error {
	if err := s.content.Reset(c.Request().Context()); err != nil {
		return s.cacheError(c, "content reset", err)
	}
	s.auditAdmin(c, "content reset", nil)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) auditAdmin(c echo.Context, action string, fields logrus.Fields) {
	subject, _ := helpers.GetAdminSubjectFromContext(c)
	s.logger.WithFields(fields).WithFields(logrus.Fields{"action": action, "subject": subject, "ip": c.RealIP()}).Info("admin cache operation")
}
