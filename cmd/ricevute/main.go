package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ricevute/internal/config"
	"ricevute/internal/files"
	apphttp "ricevute/internal/http"
	applog "ricevute/internal/log"
	"ricevute/internal/session"
	"ricevute/internal/storage"
)

func main() {
	// Load ./.env if present; secrets still have to come from somewhere,
	// just never from source.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := applog.New(applog.Config{Level: level, Component: "ricevute"})
	applog.SetDefault(logger)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	seeded, err := repo.EnsureDefaultProject(context.Background())
	if err != nil {
		logger.Error("Failed to seed default project", "error", err)
		os.Exit(1)
	}
	if seeded {
		logger.Info("Created default collection on first run")
	}

	uploads, err := files.NewStore(cfg.UploadDir)
	if err != nil {
		logger.Error("Failed to open upload directory", "error", err, "dir", cfg.UploadDir)
		os.Exit(1)
	}

	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, repo, repo, uploads, sessions, cfg.AdminPassword)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ricevute server", "port", cfg.Port, "db", cfg.SQLiteDBPath, "uploads", uploads.Dir())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
