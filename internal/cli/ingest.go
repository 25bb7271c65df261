package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sectordocs/caodex/internal/config"
	"github.com/sectordocs/caodex/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest PDF documents from the local data directory",
		Long:  "Run one ingestion pass over the manifest (or every PDF in the data directory) and report per-document outcomes",
		RunE:  runIngest,
	}

	cmd.Flags().String("data-dir", "", "Directory containing PDF files (overrides CAODEX_DATA_DIR)")
	cmd.Flags().String("manifest", "", "Path to the JSONL manifest (overrides CAODEX_MANIFEST_PATH)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if manifest, _ := cmd.Flags().GetString("manifest"); manifest != "" {
		cfg.ManifestPath = manifest
	}

	raws, err := service.LoadRawDocuments(cfg.ManifestPath, cfg.DataDir)
	if err != nil {
		return err
	}
	log.Printf("loaded %d raw documents", len(raws))

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	storageClient, err := newStorageClient(ctx, cfg)
	if err != nil {
		return err
	}

	embedder, err := newEmbeddingClient(cfg)
	if err != nil {
		return err
	}

	pipeline := newPipeline(cfg, pool, storageClient, embedder)
	runner := service.NewRunner(pipeline, cfg.IngestConcurrency)

	summary := runner.Run(ctx, raws)

	fmt.Printf("run %s\n", summary.RunID)
	fmt.Printf("  ingested:          %d\n", summary.Ingested)
	fmt.Printf("  skipped unchanged: %d\n", summary.SkippedUnchanged)
	fmt.Printf("  failed:            %d\n", summary.Failed)
	for _, failure := range summary.Failures {
		fmt.Printf("  - %s [%s]: %v\n", failure.DocumentID, failure.ErrorKind, failure.Err)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", summary.Failed, len(raws))
	}
	return nil
}
