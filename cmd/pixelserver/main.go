package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixelstream/viewer/internal/config"
	"github.com/pixelstream/viewer/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	httpServer := server.NewHTTPServer(cfg.Addr(), mux)

	chaos := cfg.Server.Chaos
	if chaos.Reorder > 0 || chaos.Duplicate > 0 || chaos.Drop > 0 {
		log.Printf("Chaos enabled: reorder=%.2f duplicate=%.2f drop=%.2f", chaos.Reorder, chaos.Duplicate, chaos.Drop)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}()

	log.Printf("Server listening on %s (%dx%d every %s)", cfg.Addr(), cfg.Server.Width, cfg.Server.Height, cfg.Server.Tick)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}
