package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aidetect-api/internal/config"
	"github.com/Brownie44l1/aidetect-api/internal/logger"
	"github.com/Brownie44l1/aidetect-api/internal/model"
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "classifier",
	Short:         "Classify images as AI-generated or natural photographs",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("model", model.DefaultModelPath, "Path to the exported ONNX model")
	flags.String("ort-lib", "", "Path to the onnxruntime shared library")
	flags.Int("pool-size", 1, "Number of concurrent inference sessions")
	flags.Int("threads", 0, "Intra-op threads per session (0 = onnxruntime default)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "json", "Log format: json, console")
}

// setup loads configuration and builds the logger for a subcommand.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// loadModel loads the network or fails; nothing is served without it.
func loadModel(cfg *config.Config, log *zap.Logger) (*model.Session, error) {
	log.Info("Loading model",
		zap.String("path", cfg.Model.Path),
		zap.Int("pool_size", cfg.Model.PoolSize))

	session, err := model.NewLoader(model.Options{
		ModelPath:      cfg.Model.Path,
		LibraryPath:    cfg.Model.ORTLibrary,
		PoolSize:       cfg.Model.PoolSize,
		IntraOpThreads: cfg.Model.IntraOpThreads,
	}).Load()
	if err != nil {
		return nil, err
	}

	log.Info("Model loaded",
		zap.String("input", session.Metadata.InputName),
		zap.Int64s("input_shape", session.Metadata.InputShape),
		zap.String("output", session.Metadata.OutputName),
		zap.Any("classes", session.Metadata.Classes))
	return session, nil
}
