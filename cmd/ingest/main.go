package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibn-labs/fulcrum/internal/catalog"
	"github.com/ibn-labs/fulcrum/internal/config"
	"github.com/ibn-labs/fulcrum/internal/embed"
	"github.com/ibn-labs/fulcrum/internal/provisioner"
)

// ingest pulls the service catalog from the provisioning platform, embeds
// each specification, and persists the entries for the server to index at
// startup.
func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall ingestion deadline")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg := loader.Config()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	client := provisioner.NewClient(func() config.ProvisionerConfig {
		return loader.Config().Provisioner
	}, nil)
	embedder := embed.NewHTTPEmbedder(func() config.EmbeddingConfig {
		return loader.Config().Embedding
	})
	store := catalog.NewStore(dbPool)

	specs, err := client.GetCatalog(ctx)
	if err != nil {
		log.Fatalf("failed to fetch catalog: %v", err)
	}
	if len(specs) == 0 {
		log.Fatal("provisioning platform returned an empty catalog")
	}
	slog.Info("catalog fetched", "specs", len(specs))

	var ingested int
	for _, spec := range specs {
		text := spec.Name
		if spec.Description != "" {
			text += ": " + spec.Description
		}
		vec, err := embedder.Embed(ctx, text)
		if err != nil {
			log.Fatalf("failed to embed spec %s: %v", spec.ID, err)
		}
		entry := catalog.Entry{
			ID:          spec.ID,
			Name:        spec.Name,
			Description: spec.Description,
			Metadata: map[string]string{
				"version":        spec.Version,
				"lifecycle":      spec.LifecycleStatus,
				"last_update":    spec.LastUpdate,
				"embedding_text": text,
			},
			Vector: vec,
		}
		if err := store.Upsert(ctx, entry); err != nil {
			log.Fatalf("failed to persist spec %s: %v", spec.ID, err)
		}
		ingested++
	}

	count, err := store.Count(ctx)
	if err != nil {
		log.Fatalf("failed to count catalog entries: %v", err)
	}
	fmt.Printf("ingested %d specifications (%d total in store)\n", ingested, count)
}
