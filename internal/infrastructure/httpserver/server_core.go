package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tagcache/go/internal/core/ports"
	customMiddleware "github.com/avatarctic/tagcache/go/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
	// MaxBodySize caps entry payloads, e.g. "8M". Empty disables the limit.
	MaxBodySize string
}

type ServerDeps struct {
	Cache          ports.TagCache
	Content        ports.ContentCacheService
	HealthCheckers []ports.HealthChecker
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	cache          ports.TagCache
	content        ports.ContentCacheService
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, adminSecret string, logger *logrus.Logger, deps ServerDeps) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		cache:          deps.Cache,
		content:        deps.Content,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			logger,
			adminSecret,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
