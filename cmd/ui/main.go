package main

import (
	"log"

	"github.com/joho/godotenv"

	"studykit/internal/config"
	"studykit/internal/container"
	"studykit/internal/monitor"
	"studykit/ui"
)

// The dashboard alone, for use next to a running API server. It reads the
// retention state the server writes but never runs the checks itself.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}

	var mon *monitor.Monitor
	if appConfig.Monitor.Enabled {
		mon = monitor.Open(appConfig.Paths.DataRoot, nil)
	}

	app, err := ui.NewApp(appContainer, mon)
	if err != nil {
		log.Fatal("Failed to create UI app:", err)
	}

	log.Printf("Starting studykit dashboard on http://localhost:%s", appConfig.Server.UIPort)
	log.Fatal(app.Start(":" + appConfig.Server.UIPort))
}
