package ui

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studykit/domain/core"
	"studykit/internal/container"
	"studykit/internal/errors"
	"studykit/internal/monitor"
	"studykit/ui/middleware"
)

// MaxUploadBytes caps config uploads.
const MaxUploadBytes = 10 << 20

// Server is the JSON API
type Server struct {
	router  *gin.Engine
	c       *container.Container
	monitor *monitor.Monitor
}

// NewServer creates the API server. mon may be nil when the retention
// monitor is disabled; downloads then do not arm the delete clock.
func NewServer(c *container.Container, mon *monitor.Monitor) *Server {
	s := &Server{
		router:  gin.New(),
		c:       c,
		monitor: mon,
	}
	s.setupMiddleware()

	if mon != nil {
		c.Imports.OnComplete = func(name core.StudyName) {
			if _, err := mon.Arm(); err != nil {
				log.Printf("[Server] failed to arm auto-delete after %s download: %v", name, err)
			}
		}
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	api.GET("/studies", s.handleListStudies)
	api.POST("/config/explain", s.handleExplainUpload)

	study := api.Group("/studies/:study", middleware.Study())
	study.POST("/download", s.handleDownload)
	study.POST("/tag", s.handleTag)
	study.GET("/timeline", s.handleTimeline)
	study.GET("/timeline.xlsx", s.handleTimelineExport)
	study.GET("/participants", s.handleParticipants)
	study.GET("/payment-files", s.handlePaymentFiles)
	study.POST("/payments", s.handlePaymentReport)
	study.GET("/payments.xlsx", s.handlePaymentExport)
	study.GET("/configs", s.handleListConfigs)
	study.GET("/configs/:workflow/:file", s.handleDescribeConfig)
	study.POST("/configs/:workflow", s.handleUploadConfig)

	mon := api.Group("/monitor")
	mon.GET("", s.handleMonitorStatus)
	mon.POST("/extend-delete", s.handleMonitorExtendDelete)
	mon.POST("/extend-quit", s.handleMonitorExtendQuit)
	mon.POST("/delete", s.handleMonitorDelete)
	mon.PUT("/settings", s.handleMonitorSettings)
	mon.POST("/quit", s.handleMonitorQuit)
}

// Handler exposes the router, for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server on addr
func (s *Server) Start(addr string) error {
	log.Printf("[Server] listening on %s", addr)
	return s.router.Run(addr)
}

func respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[Server] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

// listQuery splits a comma-separated query value. An absent key is nil;
// a present empty key is an empty slice.
func listQuery(c *gin.Context, key string) []string {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	out := []string{}
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
