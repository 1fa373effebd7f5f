// This is the entrypoint for the tutti rehearsal server. It loads
// configuration, wires the room manager to its HTTP and reference
// transport surfaces, and handles graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jameshartt/tutti/internal/config"
	"github.com/jameshartt/tutti/internal/core/binder"
	"github.com/jameshartt/tutti/internal/server"
	"github.com/jameshartt/tutti/internal/transport/wsref"
)

func main() {
	configPath := flag.String("config", "configs/tutti.example.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx := context.Background()

	srv := server.New(cfg)

	b := binder.New(srv.Manager())
	transportAddr := fmt.Sprintf(":%d", cfg.Server.TransportPort)
	transportSrv, err := wsref.NewServer(transportAddr, b.Callbacks())
	if err != nil {
		log.Fatalf("Failed to start reference transport: %v", err)
	}

	transportMux := http.NewServeMux()
	transportSrv.RegisterRoutes(transportMux)
	go func() {
		if err := http.ListenAndServe(transportAddr, transportMux); err != nil && err != http.ErrServerClosed {
			log.Printf("Transport server error: %v", err)
		}
	}()

	shutdownHandler := server.NewShutdownHandler(srv, ctx)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}()

	if err := shutdownHandler.Wait(); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}

	log.Println("Server shut down cleanly")
}
