package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	videosplitter "github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/api"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/blob"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/config"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/logger"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/queue"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config/videosplitd.yaml)")
	listenAddr := flag.String("addr", "", "Override listen address from config")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			cfgPath = envPath
		} else {
			cfgPath = "config/videosplitd.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init("info", "text")
		logger.Error("Could not load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if cfg.QueueDSN == "" {
		logger.Error("Queue DSN not configured (queue_dsn or QUEUE_DSN)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize job record store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	workQueue, err := queue.New(ctx, cfg.QueueDSN)
	if err != nil {
		logger.Error("Failed to connect work-order queue", "error", err)
		os.Exit(1)
	}
	defer workQueue.Close()

	blobStore, err := blob.New(cfg.S3)
	if err != nil {
		logger.Error("Failed to connect blob store", "error", err)
		os.Exit(1)
	}

	hub := api.NewHub()
	hub.Start()

	submitter := jobs.NewSubmitter(jobStore, blobStore, workQueue)
	reconciler := jobs.NewReconciler(jobStore, blobStore, cfg.ListingCap, hub.BroadcastEvent)
	downloads := jobs.NewDownloadResolver(jobStore, blobStore, cfg.DownloadTTL)
	updater := jobs.NewUpdater(jobStore, hub.BroadcastEvent)

	handler := api.NewHandler(submitter, reconciler, downloads, updater, jobStore, hub, api.Timeouts{
		Submit: cfg.SubmitTimeout,
		Status: cfg.StatusTimeout,
	})
	handler.RegisterPinger("store", jobStore.Ping)
	handler.RegisterPinger("queue", workQueue.Ping)
	handler.RegisterPinger("blob", blobStore.Ping)

	router := api.NewRouter(handler)

	fmt.Printf("videosplitd v%s\n", videosplitter.Version)
	fmt.Printf("  Listen:    %s\n", cfg.ListenAddr)
	fmt.Printf("  Database:  %s\n", jobStore.Path())
	fmt.Printf("  Bucket:    %s\n", cfg.S3.Bucket)
	fmt.Println()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	logger.Info("videosplitd started", "version", videosplitter.Version, "addr", cfg.ListenAddr)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
