package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/norahq/nora/pkg/nora/auth"
	"github.com/norahq/nora/pkg/nora/config"
	"github.com/norahq/nora/pkg/nora/database"
	"github.com/norahq/nora/pkg/nora/log"
	"github.com/norahq/nora/pkg/nora/notify"
	"github.com/norahq/nora/pkg/nora/server"
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

	logger.Info("Starting Nora server")

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

	created, err := auth.EnsureAdminExists(db, cfg.Security.AdminEmail, cfg.Security.AdminPassword)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create admin user")
	}
	if created {
		logger.LogSystem("bootstrap", "create_admin", true, map[string]interface{}{"email": cfg.Security.AdminEmail})
		logger.Warn("Created default admin user, change its password")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var manager *notify.Manager
	if cfg.Notify.RunWorkers {
		client := &http.Client{Timeout: time.Duration(cfg.Notify.RequestTimeout) * time.Second}
		sender := notify.NewSlackSender(cfg.Server.BaseURL, cfg.Notify.SlackServiceURL, client)
		loc := cfg.Server.Location()
		manager = notify.NewManager(notify.NewDBQueue(db), sender, logger, &cfg.Notify,
			func() time.Time { return time.Now().In(loc) })
		manager.Start(ctx)
	}

	srv := server.New(cfg, db, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	logger.WithField("address", cfg.Server.GetServerAddr()).Info("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.GracefulStop)*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if manager != nil {
		manager.Stop()
	}

	logger.Info("Server exited")
}
