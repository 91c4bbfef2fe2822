package httpserver

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if s.config != nil && s.config.MaxBodySize != "" {
		s.echo.Use(middleware.BodyLimit(s.config.MaxBodySize))
	}

	s.echo.Use(s.middleware.Metrics.CollectHTTPMetrics("/metrics"))
	s.echo.Use(s.middleware.Logging.RequestLogging())
}
