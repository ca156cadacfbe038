// Package container wires adapters into the application services shared by
// the API server, the dashboard and the CLI.
package container

import (
	"fmt"
	"time"

	"studykit/adapters/metricwire"
	"studykit/adapters/tabular"
	"studykit/app"
	"studykit/internal/config"
	"studykit/internal/configexplorer"
)

// Container holds the application dependencies
type Container struct {
	Config   *config.Config
	Location *time.Location

	// Adapters
	Store    *tabular.Store
	Configs  *tabular.ConfigStore
	Settings *tabular.SettingsFile
	Exporter *tabular.XLSXExporter
	Importer *metricwire.Importer

	// Services
	Studies  *app.StudyService
	Imports  *app.ImportService
	Tagging  *app.TaggingService
	Payments *app.PaymentService
	Timeline *app.TimelineService
	Explorer *configexplorer.Explorer
}

// New creates a container from configuration
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	loc, err := cfg.Report.Location()
	if err != nil {
		return nil, fmt.Errorf("default timezone: %w", err)
	}

	c := &Container{
		Config:   cfg,
		Location: loc,
		Store:    tabular.NewStore(cfg.Paths.DataRoot),
		Configs:  tabular.NewConfigStore(cfg.Paths.ConfigRoot),
		Settings: tabular.NewSettingsFile(cfg.Paths.SettingsFile),
		Exporter: tabular.NewXLSXExporter(),
		Importer: metricwire.NewImporter(metricwire.ConfigFrom(cfg.MetricWire)),
	}

	c.Studies = app.NewStudyService(c.Store, c.Settings)
	c.Imports = app.NewImportService(c.Importer, c.Store, c.Configs, c.Settings, cfg.Paths.DataRoot, cfg.MetricWire.DumpJSON)
	c.Tagging = app.NewTaggingService(c.Store, c.Configs)
	c.Payments = app.NewPaymentService(c.Store, c.Configs, c.Exporter, loc)
	c.Timeline = app.NewTimelineService(c.Store, c.Configs, c.Settings, c.Exporter, loc)
	c.Explorer = configexplorer.New(c.Configs)
	return c, nil
}
