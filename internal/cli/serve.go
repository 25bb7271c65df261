package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sectordocs/caodex/internal/api/handlers"
	"github.com/sectordocs/caodex/internal/config"
	"github.com/sectordocs/caodex/internal/jobs"
	"github.com/sectordocs/caodex/internal/repository"
	"github.com/sectordocs/caodex/internal/server"
	"github.com/sectordocs/caodex/internal/service"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the caodex API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Disable the background reprocess worker")

	return cmd
}

// applyPortFlag lets an explicit --port beat the environment, including when
// the flag is set to the default value.
func applyPortFlag(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	applyPortFlag(cmd, cfg)

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

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	pipeline := newPipeline(cfg, pool, storageClient, embedder)
	retrieval := service.NewRetrieval(chunkRepo, embedder)

	var storageAdmin service.StorageAdmin
	if storageClient != nil {
		storageAdmin = storageClient
	}
	documents := service.NewDocuments(docRepo, storageAdmin)

	var reprocessWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker && storageClient != nil {
		processor := jobs.NewReprocessWorker(docRepo, pipeline, cfg.WorkerBatchSize)
		reprocessWorker = jobs.NewWorker(processor, cfg.WorkerPollInterval)
		go reprocessWorker.Start(ctx)
		log.Println("reprocess worker started")
	}

	routerCfg := server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(pipeline, documents),
		SearchHandler:   handlers.NewSearchHandler(retrieval),
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if reprocessWorker != nil {
		reprocessWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
