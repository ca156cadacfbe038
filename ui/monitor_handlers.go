package ui

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studykit/internal/errors"
	"studykit/internal/monitor"
)

// withMonitor answers 404 when the monitor is disabled.
func (s *Server) withMonitor(c *gin.Context) (*monitor.Monitor, bool) {
	if s.monitor == nil {
		respondError(c, errors.NotFound("retention monitor"))
		return nil, false
	}
	return s.monitor, true
}

func (s *Server) handleMonitorStatus(c *gin.Context) {
	mon, ok := s.withMonitor(c)
	if !ok {
		return
	}
	status, err := mon.Status()
	if err != nil {
		respondError(c, err)
		return
	}
	signal, err := mon.ConsumeSignal()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "signal": signal})
}

func (s *Server) monitorAction(c *gin.Context, action func(*monitor.Monitor) (monitor.State, error)) {
	mon, ok := s.withMonitor(c)
	if !ok {
		return
	}
	st, err := action(mon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleMonitorExtendDelete(c *gin.Context) {
	s.monitorAction(c, (*monitor.Monitor).ExtendDelete)
}

func (s *Server) handleMonitorExtendQuit(c *gin.Context) {
	s.monitorAction(c, (*monitor.Monitor).ExtendQuit)
}

func (s *Server) handleMonitorDelete(c *gin.Context) {
	s.monitorAction(c, (*monitor.Monitor).DeleteNow)
}

type monitorSettings struct {
	AutoDeleteMinutes *int  `json:"auto_delete_minutes"`
	AutoQuitEnabled   *bool `json:"auto_quit_enabled"`
	AutoQuitMinutes   *int  `json:"auto_quit_minutes"`
}

func (s *Server) handleMonitorSettings(c *gin.Context) {
	var body monitorSettings
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, errors.InvalidInput("invalid monitor settings: "+err.Error()))
		return
	}
	s.monitorAction(c, func(mon *monitor.Monitor) (monitor.State, error) {
		var st monitor.State
		var err error
		if body.AutoDeleteMinutes == nil && body.AutoQuitEnabled == nil && body.AutoQuitMinutes == nil {
			return st, errors.InvalidInput("no monitor settings given")
		}
		if body.AutoDeleteMinutes != nil {
			if st, err = mon.SetAutoDeleteMinutes(*body.AutoDeleteMinutes); err != nil {
				return st, err
			}
		}
		if body.AutoQuitEnabled != nil || body.AutoQuitMinutes != nil {
			current, err := mon.Status()
			if err != nil {
				return st, err
			}
			enabled, minutes := current.AutoQuitEnabled, current.AutoQuitMinutes
			if body.AutoQuitEnabled != nil {
				enabled = *body.AutoQuitEnabled
			}
			if body.AutoQuitMinutes != nil {
				minutes = *body.AutoQuitMinutes
			}
			if st, err = mon.SetAutoQuit(enabled, minutes); err != nil {
				return st, err
			}
		}
		return st, nil
	})
}

func (s *Server) handleMonitorQuit(c *gin.Context) {
	mon, ok := s.withMonitor(c)
	if !ok {
		return
	}
	if err := mon.Quit(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "shutting down"})
}
