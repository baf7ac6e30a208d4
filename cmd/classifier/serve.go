package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aidetect-api/internal/handlers"
	"github.com/Brownie44l1/aidetect-api/internal/imaging"
	"github.com/Brownie44l1/aidetect-api/internal/model"
	"github.com/Brownie44l1/aidetect-api/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP prediction service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "0.0.0.0", "Interface to listen on")
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	session, err := loadModel(cfg, log)
	if err != nil {
		log.Error("Failed to load model", zap.Error(err))
		return err
	}
	defer session.Close()

	h := handlers.NewHandler(
		model.NewPredictor(session),
		imaging.NewDecoder(cfg.App.MaxPixels),
		cfg.App.MaxUploadSize,
		log,
	)

	srv, err := server.New(cfg, h, log)
	if err != nil {
		return err
	}

	log.Info("Endpoints",
		zap.String("GET /", "liveness"),
		zap.String("GET /health", "model metadata"),
		zap.String("POST /predict", "multipart upload in field 'image'"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	ctx := cmd.Context()
	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server exited")
	return nil
}
