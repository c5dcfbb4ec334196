// Package app assembles the classification pipeline from a Config. Both
// the HTTP server and the offline CLI start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Brownie44l1/meloscan/internal/classifier"
	"github.com/Brownie44l1/meloscan/internal/config"
	"github.com/Brownie44l1/meloscan/internal/model"
	"github.com/Brownie44l1/meloscan/internal/remote"
	"github.com/Brownie44l1/meloscan/internal/vision"
)

// Pipeline owns the model loader and the classifier built on it.
type Pipeline struct {
	Classifier *classifier.Classifier
	loader     *model.Loader
}

// Setup builds a pipeline. Remote settings and the artifact download are
// best effort; only an unusable vision backend is fatal. The model is
// loaded lazily, call Status to force it.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ops, err := vision.New(cfg.Vision.Backend)
	if err != nil {
		return nil, fmt.Errorf("vision backend: %w", err)
	}

	classNames := applyRemote(ctx, cfg, logger)

	blob := model.BlobSource{
		AccountURL: cfg.Model.AzureBlob.AccountURL,
		Container:  cfg.Model.AzureBlob.Container,
		Blob:       cfg.Model.AzureBlob.Blob,
	}
	if blob.Configured() {
		if err := model.FetchArtifact(ctx, cfg.Model.Path, blob, logger); err != nil {
			logger.Error("failed to fetch model artifact", "path", cfg.Model.Path, "error", err)
		}
	}

	loader := model.NewLoader(model.LoadOptions{
		ModelPath:      cfg.Model.Path,
		MetadataPath:   cfg.Model.MetadataPath,
		LibraryPath:    cfg.Model.LibraryPath,
		IntraOpThreads: cfg.Model.IntraOpThreads,
		InputName:      cfg.Model.InputName,
		OutputName:     cfg.Model.OutputName,
		ClassNames:     classNames,
		Logger:         logger,
	})

	cls := classifier.New(loader, ops, classifier.Options{
		ValidityThreshold: cfg.Threshold(),
		AnalysisMaxSide:   cfg.Vision.AnalysisMaxSide,
		MaxPixels:         cfg.Vision.MaxPixels,
		Logger:            logger,
	})

	return &Pipeline{Classifier: cls, loader: loader}, nil
}

// Status loads the model if needed and returns its output class order.
func (p *Pipeline) Status() ([]string, error) {
	e, err := p.loader.Engine()
	if err != nil {
		return nil, err
	}
	return e.Classes(), nil
}

// Close releases the model. In-flight predictions finish first.
func (p *Pipeline) Close() {
	p.loader.Close()
}

// applyRemote overlays the settings published by the model-management
// service onto cfg and returns its class order, if any. Failures keep the
// local values.
func applyRemote(ctx context.Context, cfg *config.Config, logger *slog.Logger) []string {
	if cfg.Remote.BaseURL == "" {
		return nil
	}
	client := remote.New(cfg.Remote.BaseURL, cfg.RemoteTimeout(), logger)

	if _, err := client.CheckHealth(ctx); err != nil {
		logger.Warn("model-management service not healthy", "url", cfg.Remote.BaseURL, "error", err)
	}

	s, err := client.Settings(ctx)
	if err != nil {
		logger.Warn("using local classifier settings", "url", cfg.Remote.BaseURL, "error", err)
		return nil
	}
	if s.ValidityThreshold != nil {
		logger.Info("validity threshold from remote settings",
			"local", cfg.Threshold(),
			"remote", *s.ValidityThreshold)
		cfg.SetThreshold(*s.ValidityThreshold)
	}
	return s.ClassNames
}
