package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelibr/modelibr/cmd/thumbnail-worker/client"
	"github.com/modelibr/modelibr/cmd/thumbnail-worker/worker"
	"github.com/modelibr/modelibr/common/bootstrap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Workers reach Postgres only through the API's worker protocol
	components, err := bootstrap.Setup(ctx, "thumbnail-worker",
		bootstrap.WithoutDB(),
		bootstrap.WithoutCache(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	cfg := components.Config
	components.Logger.Info("thumbnail-worker starting", "api_url", cfg.Jobs.APIBaseURL)

	apiClient := client.NewAPIClient(cfg.Jobs.APIBaseURL, components.Logger)
	thumbnailWorker := worker.NewThumbnailWorker(
		apiClient,
		components.Storage,
		components.Logger,
		cfg.Jobs.PollInterval,
		cfg.Jobs.ThumbnailEdge,
	)

	// Start worker in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := thumbnailWorker.Start(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("thumbnail worker error: %w", err)
		}
	}()

	components.Logger.Info("thumbnail-worker started successfully", "worker_id", thumbnailWorker.WorkerID())

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		components.Logger.Error("worker failed", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		components.Logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}

	components.Logger.Info("thumbnail-worker shutting down gracefully")
}
