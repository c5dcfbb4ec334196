package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/meloscan/internal/app"
	"github.com/Brownie44l1/meloscan/internal/config"
	"github.com/Brownie44l1/meloscan/internal/handlers"
)

var version = "dev"

const shutdownGrace = 15 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
		port       int
	)

	cmd := &cobra.Command{
		Use:   "meloscan-server",
		Short: "Serve watermelon classifications over HTTP",
		Long: `Serve watermelon classifications over HTTP.

Endpoints:
  GET  /health, /api/health                    model status
  POST /predict, /api/predict, /predict/image  multipart upload ("file" or "image")`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (default "+config.DefaultFile+")")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "Port to listen on (overrides config and PORT)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, debug bool) error {
	logger := cfg.Log.NewLogger(os.Stderr, debug)

	pipeline, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// A missing model is not fatal: /health reports it and predictions
	// return 503 until the artifact is fixed and the service restarted.
	if classes, err := pipeline.Status(); err != nil {
		logger.Error("model unavailable", "path", cfg.Model.Path, "error", err)
	} else {
		logger.Info("classifier ready",
			"classes", classes,
			"backend", pipeline.Classifier.Backend(),
			"threshold", pipeline.Classifier.Threshold())
	}

	h := handlers.NewHandler(pipeline.Classifier, pipeline.Status, cfg.MaxUploadBytes(), logger)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           handlers.Routes(h, cfg.RequestTimeout()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		pipeline.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	pipeline.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
