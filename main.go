package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"studykit/internal/config"
	"studykit/internal/container"
	"studykit/internal/monitor"
	"studykit/ui"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}

	var mon *monitor.Monitor
	if appConfig.Monitor.Enabled {
		mon, err = monitor.New(appConfig.Paths.DataRoot, appConfig.Monitor, stop)
		if err != nil {
			log.Fatalf("Failed to create retention monitor: %v", err)
		}
		if err := mon.Start(); err != nil {
			log.Fatalf("Failed to start retention monitor: %v", err)
		}
		defer mon.Stop()
	}

	dashboard, err := ui.NewApp(appContainer, mon)
	if err != nil {
		log.Fatalf("Failed to create dashboard: %v", err)
	}

	servers := []*http.Server{
		{Addr: ":" + appConfig.Server.Port, Handler: ui.NewServer(appContainer, mon).Handler()},
		{Addr: ":" + appConfig.Server.UIPort, Handler: dashboard.Handler()},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			log.Printf("Listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Shutdown of %s failed: %v", srv.Addr, err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}
