package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Brownie44l1/vgg-api/internal/config"
	"github.com/Brownie44l1/vgg-api/internal/handlers"
	"github.com/Brownie44l1/vgg-api/internal/model"
	"github.com/Brownie44l1/vgg-api/internal/pipeline"
	"github.com/Brownie44l1/vgg-api/internal/server"
	"github.com/Brownie44l1/vgg-api/internal/upload"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port != 0 {
			cfg.Port = port
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		return serve(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides PORT)")
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	log.Info().Str("model", cfg.ModelPath).Str("metadata", cfg.MetadataPath).Msg("Loading model")

	modelServer, err := model.NewServer(cfg.ModelPath, cfg.MetadataPath, cfg.ORTLibraryPath)
	if err != nil {
		return fmt.Errorf("failed to initialize model server: %w", err)
	}
	defer modelServer.Close()

	log.Info().Int("classes", len(modelServer.Classes())).Int("image_size", modelServer.Metadata.ImageSize).Msg("Model loaded")

	store, err := upload.NewStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	classifier, err := pipeline.NewFromServer(modelServer)
	if err != nil {
		return err
	}
	h := handlers.NewHandler(classifier, store, cfg.MaxUploadBytes, cfg.TopK, len(modelServer.Classes()))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.NewRouter(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Int("port", cfg.Port).Msg("Server starting")
	log.Info().Msg("  GET  /        - Upload page")
	log.Info().Msg("  GET  /health  - Health check")
	log.Info().Msg("  POST /predict - Classify an uploaded image (field \"file\")")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
