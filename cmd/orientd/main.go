package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"orientd/internal/config"
	"orientd/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// Mirror logs into the ring buffer served at /api/logs.
	logs := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("orientd starting")
	log.Printf("signalk dest=%s label=%s", cfg.SignalK.Dest, cfg.SignalK.Label)

	if err := run(ctx, cfg, configPath, logs); err != nil && ctx.Err() == nil {
		log.Fatalf("orientd: %v", err)
	}
	log.Printf("orientd stopping")
}
