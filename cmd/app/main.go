package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"Sentinel/internal/di"
	"Sentinel/internal/usecase"
	"Sentinel/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", usecase.ModeClose, "run mode: midday or close")
	dryRun := flag.Bool("dry-run", false, "full pass without persisting or notifying")
	replay := flag.String("replay", "", "re-derive signals for a stored date (YYYY-MM-DD)")
	serve := flag.Bool("serve", false, "run the dashboard server instead of a single pass")
	flag.Parse()

	// .env is optional; explicit environment always wins
	_ = godotenv.Load()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s storage=%s events=%s watchlist=%d",
		cfg.Environment, cfg.Storage.Backend, cfg.Events.Backend, len(cfg.Watchlist))

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	switch {
	case *serve:
		err = app.Serve()
	case *replay != "":
		err = app.Replay(context.Background(), *replay, *mode)
	default:
		err = app.RunOnce(context.Background(), *mode, *dryRun)
	}
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
