package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gradwatch/bot"
	"gradwatch/config"
	"gradwatch/logging"
	"gradwatch/scheduler"
	"gradwatch/scraper"
	"gradwatch/storage"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run one scrape cycle and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("gradwatch.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting gradwatch...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d source configs", len(cfg.Sources))
	for id, src := range cfg.Sources {
		log.Printf("  - %s (%s)", src.Name, id)
	}

	ctx := context.Background()

	var store storage.Store
	if cfg.PostgresDSN != "" {
		store, err = storage.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		log.Println("Using Postgres store")
	} else {
		store, err = storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		log.Printf("Using SQLite store: %s", cfg.DBPath)
	}
	defer store.Close()

	orchestrator := scraper.NewOrchestrator(cfg, store)

	if cfg.Archive.Bucket != "" {
		archiver, err := storage.NewSnapshotArchiver(ctx, cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to set up snapshot archiver: %v", err)
		}
		orchestrator.SetArchiver(archiver)
		log.Printf("Archiving page snapshots to s3://%s", cfg.Archive.Bucket)
	}

	var tgBot *bot.Bot
	if cfg.Telegram.Token != "" {
		tgBot, err = bot.New(cfg.Telegram.Token, cfg.Telegram.NotifyChatID, store)
		if err != nil {
			log.Fatalf("Failed to set up Telegram bot: %v", err)
		}
		orchestrator.SetNotifier(tgBot)
	}

	if *scrapeNow {
		log.Println("Running scrape...")
		orchestrator.RunAll(ctx)
		log.Println("Scrape complete!")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg, orchestrator)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	if tgBot != nil {
		go tgBot.Run(ctx)
		log.Println("Telegram bot started")
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}
