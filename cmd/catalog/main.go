// Command catalog serves the course catalog and analytics API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalogapp/internal"
	"catalogapp/internal/pkg/geoip"
)

const shutdownGrace = 15 * time.Second

func main() {
	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("catalog: setup failed: %v", err)
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		log.Fatalf("catalog: schema migration failed: %v", err)
	}

	if err := app.StartAsync(); err != nil {
		log.Fatalf("catalog: could not start: %v", err)
	}
	log.Printf("catalog: serving on port %s", app.Config.GetPort())

	os.Exit(serveUntilSignal(app))
}

// serveUntilSignal blocks until SIGINT or SIGTERM, then drains in-flight
// requests and stops the drift audit. It returns the process exit code.
func serveUntilSignal(app *internal.Application) int {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Printf("catalog: %v received, shutting down", <-stop)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	defer geoip.Close()

	if err := app.Shutdown(ctx); err != nil {
		log.Printf("catalog: shutdown incomplete: %v", err)
		return 1
	}
	log.Println("catalog: stopped")
	return 0
}
