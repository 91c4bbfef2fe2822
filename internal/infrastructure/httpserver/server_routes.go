package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")

	entries := api.Group("/entries")
	entries.PUT("/:id", s.saveEntry)
	entries.GET("/:id", s.loadEntry)
	entries.HEAD("/:id", s.testEntry)
	entries.DELETE("/:id", s.removeEntry)
	entries.GET("/:id/metadata", s.entryMetadata)
	entries.POST("/:id/touch", s.touchEntry)

	api.GET("/ids", s.listIds)
	api.GET("/tags", s.listTags)
	api.GET("/capabilities", s.capabilities)
	api.GET("/filling", s.fillingPercentage)

	content := api.Group("/content")
	content.PUT("/:cache_id", s.putContent)
	content.GET("/:cache_id", s.getContent)
	content.POST("/reset-on", s.resetContentOn)

	if !s.middleware.Admin.Enabled() {
		s.logger.Warn("ADMIN_JWT_SECRET not set, admin routes are disabled")
		return
	}
	admin := api.Group("/admin", s.middleware.Admin.RequireAdmin())
	admin.POST("/clean", s.clean)
	admin.POST("/flush", s.flush)
	admin.POST("/gc", s.collectGarbage)
	admin.POST("/content/reset", s.resetContent)
}
