// Command ollama-client drafts questions for an ad-hoc job against a local
// Ollama instance, using the prompt templates and schemas stored in the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/garnizeh/skilltrials/internal/ai"
	"github.com/garnizeh/skilltrials/internal/config"
	"github.com/garnizeh/skilltrials/internal/db"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/internal/repository/sqlite"
	"github.com/garnizeh/skilltrials/pkg/ollama"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	title := flag.String("title", "Backend Go developer", "Job title")
	description := flag.String("description", "Builds HTTP services in Go backed by SQL databases.", "Job description")
	count := flag.Int("count", 3, "Number of questions")
	difficulty := flag.String("difficulty", "medium", "Question difficulty")
	listOnly := flag.Bool("models", false, "List installed models and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ollama.SetLogger(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := ollama.NewDefaultClient(cfg.Ollama)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	if *listOnly {
		installed, err := client.ListModels(ctx)
		if err != nil {
			log.Fatal(err)
		}
		for _, m := range installed {
			fmt.Printf("%s\t%d\n", m.Name, m.Size)
		}
		return
	}

	if err := client.Health(ctx); err != nil {
		log.Fatal(err)
	}

	conn, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()
	repo := sqlite.New(conn, logger)

	gen, err := ai.NewGenerator(ctx, client, cfg.EngineConfig, repo, repo, logger)
	if err != nil {
		log.Fatal(err)
	}

	job := models.Job{Title: *title, Description: *description}
	drafts, err := gen.Generate(ctx, job, *count, *difficulty)
	if err != nil {
		log.Fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(drafts); err != nil {
		log.Fatal(err)
	}
}
