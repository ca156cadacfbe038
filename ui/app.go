package ui

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studykit/domain/timeline"
	"studykit/internal/container"
	"studykit/internal/monitor"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// App is the HTML dashboard
type App struct {
	router    *chi.Mux
	c         *container.Container
	monitor   *monitor.Monitor
	templates *template.Template
}

// NewApp creates the dashboard. mon may be nil.
func NewApp(c *container.Container, mon *monitor.Monitor) (*App, error) {
	funcMap := template.FuncMap{
		// explanation HTML is rendered from our own markdown with raw HTML skipped
		"safe": func(s string) template.HTML { return template.HTML(s) },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		router:    chi.NewRouter(),
		c:         c,
		monitor:   mon,
		templates: templates,
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)

	a.router.Route("/studies/{study}", func(r chi.Router) {
		r.Post("/tag", a.handleRunTagging)
		r.Get("/timeline", a.handleTimelinePage)
		r.Get("/payments", a.handlePaymentsPage)
		r.Get("/configs", a.handleConfigsPage)
		r.Post("/configs/{workflow}", a.handleConfigUpload)
	})

	a.router.Post("/monitor/extend-delete", a.monitorAction(a.extendDelete))
	a.router.Post("/monitor/extend-quit", a.monitorAction(a.extendQuit))
	a.router.Post("/monitor/delete", a.monitorAction(a.deleteNow))
}

// Handler exposes the router, for http.Server and tests.
func (a *App) Handler() http.Handler {
	return a.router
}

// Start runs the dashboard on addr
func (a *App) Start(addr string) error {
	log.Printf("[Dashboard] listening on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

// page is what every template receives.
type page struct {
	Title string
	Study string
	Error string
}

var timelineRanges = []timeline.Range{timeline.RangeWeek, timeline.RangeMonth, timeline.RangeAll}
