package ui

import (
	"github.com/gin-gonic/gin"

	"studykit/ui/middleware"
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(gin.Logger(), gin.Recovery())
	s.router.MaxMultipartMemory = MaxUploadBytes
}
