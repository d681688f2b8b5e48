package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/norahq/nora/pkg/nora/config"
	"github.com/norahq/nora/pkg/nora/database"
	"github.com/norahq/nora/pkg/nora/log"
	"github.com/norahq/nora/pkg/nora/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.New(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("workers", cfg.Notify.WorkerCount).Info("Starting Nora notification worker")

	db, err := database.Connect(&cfg.Database, cfg.Logging.Level == "debug")
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.WithError(err).Error("Failed to close database connection")
		}
	}()

	if err := database.Migrate(db); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}
	logger.LogSystem("database", "migrate", true, map[string]interface{}{"driver": cfg.Database.Driver})

	client := &http.Client{Timeout: time.Duration(cfg.Notify.RequestTimeout) * time.Second}
	sender := notify.NewSlackSender(cfg.Server.BaseURL, cfg.Notify.SlackServiceURL, client)
	loc := cfg.Server.Location()
	manager := notify.NewManager(notify.NewDBQueue(db), sender, logger, &cfg.Notify,
		func() time.Time { return time.Now().In(loc) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	manager.Stop()
	logger.Info("Worker exited")
}
