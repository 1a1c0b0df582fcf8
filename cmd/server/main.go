package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/skilltrials/api"
	dbfs "github.com/garnizeh/skilltrials/db"
	"github.com/garnizeh/skilltrials/internal/ai"
	"github.com/garnizeh/skilltrials/internal/config"
	"github.com/garnizeh/skilltrials/internal/db"
	"github.com/garnizeh/skilltrials/internal/jobs"
	"github.com/garnizeh/skilltrials/internal/mail"
	"github.com/garnizeh/skilltrials/internal/repository/sqlite"
	"github.com/garnizeh/skilltrials/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	ollama.SetLogger(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("starting skilltrials", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Error("close db", slog.Any("err", err))
		}
	}()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, conn, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			return err
		}
	}

	repo := sqlite.New(conn, logger)

	// Reset mail is delivered by the worker pool.
	sender := mail.NewSMTPSender(cfg.Mail, logger)
	resetMail := mail.NewResetHandler(sender, cfg.Mail.ResetURLBase, cfg.ResetTokenDuration, logger)
	pool := jobs.NewWorkerPool(repo, map[string]jobs.Handler{
		jobs.TypePasswordResetMail: resetMail.Handle,
	}, logger, cfg.Workers)
	pool.Start(ctx)

	client, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		return err
	}
	defer client.Close()

	var generator api.QuestionGenerator
	if g, err := ai.NewGenerator(ctx, client, cfg.EngineConfig, repo, repo, logger); err != nil {
		logger.Warn("question generator disabled", slog.Any("err", err))
	} else {
		generator = g
	}

	handler := api.SetupRoutes(cfg, version, buildTime, conn, generator)

	// Create HTTP server
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.APITimeout,
		WriteTimeout:      cfg.APITimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		pool.Stop()
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", slog.Any("err", err))
	}
	pool.Stop()

	logger.Info("server exited")
	return nil
}
